package cache

import (
	"context"
	"time"
)

// Idempotency remembers request keys for ttl so a retried request is
// recognised instead of being applied twice.
type Idempotency struct {
	c   Cache
	ttl time.Duration
}

func NewIdempotency(c Cache, ttl time.Duration) *Idempotency {
	return &Idempotency{c: c, ttl: ttl}
}

// Claim returns true the first time scope/key is seen.
func (i *Idempotency) Claim(ctx context.Context, scope, key string) (bool, error) {
	return i.c.SetNX(ctx, Key("idem", scope, key), "1", i.ttl)
}

// Release forgets scope/key so the request can be retried after a failure.
func (i *Idempotency) Release(ctx context.Context, scope, key string) error {
	return i.c.Delete(ctx, Key("idem", scope, key))
}
