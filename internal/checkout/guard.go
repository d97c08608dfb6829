package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Guard rejects duplicate submissions of the same checkout.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard stores idempotency keys in Redis with SETNX.
type RedisGuard struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (g RedisGuard) key(key string) string {
	sum := sha256.Sum256([]byte(key))
	prefix := g.Prefix
	if prefix == "" {
		prefix = "kasir:checkout:"
	}
	return prefix + hex.EncodeToString(sum[:])
}

// Acquire claims key; false means it was already claimed.
func (g RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	if g.R == nil {
		return false, errors.New("guard: redis client not configured")
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return g.R.SetNX(ctx, g.key(key), "locked", ttl).Result()
}

// Release frees key so a failed checkout can be retried.
func (g RedisGuard) Release(ctx context.Context, key string) error {
	if g.R == nil {
		return nil
	}
	return g.R.Del(ctx, g.key(key)).Err()
}
