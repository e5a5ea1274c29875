package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"justmatcha-backend/internal/api"
	"justmatcha-backend/internal/auth"
	"justmatcha-backend/internal/cache"
	"justmatcha-backend/internal/cart"
	"justmatcha-backend/internal/catalog"
	"justmatcha-backend/internal/config"
	"justmatcha-backend/internal/events"
	"justmatcha-backend/internal/logging"
	"justmatcha-backend/internal/order"
	"justmatcha-backend/internal/store"
	"justmatcha-backend/internal/store/memstore"
	"justmatcha-backend/internal/store/mongostore"
	"justmatcha-backend/internal/wishlist"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("storefront stopped")
	}
	log.Info().Msg("storefront shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	kv, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	publisher := openPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("event publisher close failed")
		}
	}()

	products := catalog.NewCachedProducts(st.Products, kv, cfg.CacheTTL, log)
	tokens := auth.NewTokenMaker(cfg.JWTSecret, cfg.JWTExpiresIn)
	services := api.Services{
		Auth:    auth.NewService(st.Users, st.Transactor, tokens, cfg.IsAdminEmail, log.With().Str("component", "auth").Logger()),
		Catalog: catalog.NewService(products, log.With().Str("component", "catalog").Logger()),
		// Orders read prices and stock from the store itself, never the cache.
		Orders: order.NewService(st.Transactor, st.Products, st.Orders, log.With().Str("component", "orders").Logger(),
			order.WithPublisher(publisher),
			order.WithStockInvalidator(products),
			order.WithStrictTransitions(cfg.StrictOrderTransitions),
		),
		Carts:       cart.NewService(st.Carts, products, log),
		Wishlists:   wishlist.NewService(st.Wishlists, products, log),
		Idempotency: cache.NewIdempotency(kv, cfg.IdempotencyTTL),
		Ping:        st.Ping,
	}

	gin.SetMode(cfg.GinMode)
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewServer(services, cfg.CorsOrigins, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.StorageDriver).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage; data is lost on exit")
		return memstore.New().Store(), nil
	}
	m, err := mongostore.Connect(ctx, cfg.MongoConnectionURI(), cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")
	return m.Store(), nil
}

// openCache prefers Redis and falls back to a process-local cache when it is
// not configured or unreachable.
func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}
	}
	client, err := cache.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-process cache")
		return cache.NewMemory(), func() {}
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return cache.NewRedis(client), func() { _ = client.Close() }
}

func openPublisher(cfg *config.Config, log zerolog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers), cfg.KafkaTopic)
}
