package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/kasir/internal/cart"
)

const productKeyPrefix = "kasir:catalog:product:"

// Cache keeps product snapshots in Redis under kasir:catalog:product:<id>.
// A nil *Cache, or one built without a client, never hits and never fails.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a product cache. A non-positive ttl stores without expiry.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached snapshot of id and whether it was present. A payload
// that no longer decodes is evicted and reported as a miss.
func (c *Cache) Get(ctx context.Context, id string) (cart.Product, bool, error) {
	if !c.enabled() || id == "" {
		return cart.Product{}, false, nil
	}
	key := productCacheKey(id)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Product{}, false, nil
	}
	if err != nil {
		return cart.Product{}, false, fmt.Errorf("catalog cache get %s: %w", id, err)
	}
	var p cart.Product
	if err := json.Unmarshal(data, &p); err != nil || p.ID != id {
		_ = c.client.Del(ctx, key).Err()
		return cart.Product{}, false, nil
	}
	return p, true, nil
}

// Put stores the snapshot of p.
func (c *Cache) Put(ctx context.Context, p cart.Product) error {
	if !c.enabled() || p.ID == "" {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, productCacheKey(p.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("catalog cache put %s: %w", p.ID, err)
	}
	return nil
}

// Evict drops the snapshots of ids; unknown ids are ignored.
func (c *Cache) Evict(ctx context.Context, ids ...string) error {
	if !c.enabled() {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			keys = append(keys, productCacheKey(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func productCacheKey(id string) string {
	return productKeyPrefix + id
}
