// Package api exposes the storefront services over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"justmatcha-backend/internal/auth"
	"justmatcha-backend/internal/cache"
	"justmatcha-backend/internal/cart"
	"justmatcha-backend/internal/catalog"
	"justmatcha-backend/internal/order"
	"justmatcha-backend/internal/wishlist"
)

// Services is everything the handlers call into. Idempotency and Ping may be nil.
type Services struct {
	Auth        *auth.Service
	Catalog     *catalog.Service
	Orders      *order.Service
	Carts       *cart.Service
	Wishlists   *wishlist.Service
	Idempotency *cache.Idempotency
	Ping        func(ctx context.Context) error
}

type Server struct {
	svc         Services
	corsOrigins []string
	log         zerolog.Logger
}

func NewServer(svc Services, corsOrigins []string, log zerolog.Logger) *Server {
	return &Server{svc: svc, corsOrigins: corsOrigins, log: log}
}

// Router builds the gin engine with every route mounted under /api/v1.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), s.recovery(), s.requestLogger())
	if len(s.corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", headerIdempotencyKey, headerRequestID},
			ExposeHeaders:    []string{headerRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.NoRoute(func(c *gin.Context) { fail(c, errRouteNotFound) })

	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	authed := s.authenticate()
	admin := requireAdmin()

	a := v1.Group("/auth")
	{
		a.POST("/sign-up", s.signUp)
		a.POST("/sign-in", s.signIn)
		a.POST("/sign-out", s.signOut)
		a.GET("/user", authed, s.getUser)
		a.PUT("/user", authed, s.updateProfile)
	}

	p := v1.Group("/products")
	{
		p.GET("", s.listProducts)
		p.GET("/:id", s.getProduct)
		p.POST("", authed, admin, s.createProduct)
		p.PUT("/:id", authed, admin, s.updateProduct)
		p.DELETE("/:id", authed, admin, s.deleteProduct)
	}

	o := v1.Group("/orders", authed)
	{
		o.POST("", s.idempotent("orders"), s.createOrder)
		o.GET("/myorders", s.myOrders)
		o.GET("/:id", s.getOrder)
		o.GET("", admin, s.allOrders)
		o.PUT("/:id/pay", admin, s.markPaid)
		o.PUT("/:id/deliver", admin, s.markDelivered)
		o.PUT("/:id/edit", admin, s.editOrder)
	}

	c := v1.Group("/cart", authed)
	{
		c.GET("", s.getCart)
		c.POST("", s.addToCart)
		c.PUT("", s.updateCart)
		c.DELETE("", s.deleteCart)
		c.DELETE("/remove", s.removeFromCart)
	}

	w := v1.Group("/wishlist", authed)
	{
		w.GET("", s.getWishlist)
		w.POST("", s.addToWishlist)
		w.DELETE("/clear", s.clearWishlist)
		w.DELETE("/:productId", s.removeFromWishlist)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	if s.svc.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable", "error": "unavailable"})
			return
		}
	}
	ok(c, http.StatusOK, "ok", nil)
}
