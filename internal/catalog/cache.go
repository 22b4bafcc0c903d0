package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a small JSON document cache on Redis, used for catalog data and
// payment method lists that change rarely but are read on every sale.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

// GetJSON loads and decodes a cached document into out.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := c.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes and stores a document under the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.R.Set(ctx, key, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops a cached document.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.R.Del(ctx, key).Err()
}
