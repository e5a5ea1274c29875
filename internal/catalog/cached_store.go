package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/cache"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

// CachedProducts is a cache-aside decorator for product reads. Writes go to
// the wrapped store first and then evict. Cache failures are logged and the
// wrapped store answers instead.
type CachedProducts struct {
	store.ProductStore
	c   cache.Cache
	ttl time.Duration
	log zerolog.Logger
}

func NewCachedProducts(inner store.ProductStore, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedProducts {
	return &CachedProducts{ProductStore: inner, c: c, ttl: ttl, log: log}
}

var listKey = cache.Key("products", "all")

func productKey(id primitive.ObjectID) string { return cache.Key("products", id.Hex()) }

func (p *CachedProducts) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if p.lookup(ctx, listKey, &products) {
		return products, nil
	}
	products, err := p.ProductStore.List(ctx)
	if err != nil {
		return nil, err
	}
	p.fill(ctx, listKey, products)
	return products, nil
}

func (p *CachedProducts) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Product, error) {
	var product model.Product
	if p.lookup(ctx, productKey(id), &product) {
		return &product, nil
	}
	got, err := p.ProductStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.fill(ctx, productKey(id), got)
	return got, nil
}

func (p *CachedProducts) Create(ctx context.Context, product *model.Product) error {
	if err := p.ProductStore.Create(ctx, product); err != nil {
		return err
	}
	p.Invalidate(ctx, product.ID)
	return nil
}

func (p *CachedProducts) Update(ctx context.Context, product *model.Product) error {
	if err := p.ProductStore.Update(ctx, product); err != nil {
		return err
	}
	p.Invalidate(ctx, product.ID)
	return nil
}

func (p *CachedProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := p.ProductStore.Delete(ctx, id); err != nil {
		return err
	}
	p.Invalidate(ctx, id)
	return nil
}

func (p *CachedProducts) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	if err := p.ProductStore.DecrementStock(ctx, id, qty); err != nil {
		return err
	}
	p.Invalidate(ctx, id)
	return nil
}

// Invalidate evicts the listing and the given products.
func (p *CachedProducts) Invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	keys := []string{listKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := p.c.Delete(ctx, keys...); err != nil {
		p.log.Warn().Err(err).Msg("product cache eviction failed")
	}
}

func (p *CachedProducts) lookup(ctx context.Context, key string, dst any) bool {
	raw, ok, err := p.c.Get(ctx, key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("product cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("product cache entry unreadable")
		return false
	}
	return true
}

func (p *CachedProducts) fill(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.c.Set(ctx, key, string(raw), p.ttl); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("product cache write failed")
	}
}
