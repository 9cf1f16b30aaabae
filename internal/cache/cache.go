// Package cache is the explicit TTL cache in front of session reads.
// Keys follow a fixed scheme, every entry carries its own TTL, and writers
// invalidate explicitly; there is no implicit process-wide map.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionKey returns the cache key for a session row.
func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Cache wraps a Redis client. A nil *Cache is valid and behaves as a
// pass-through (miss on Get, no-op on Set/Invalidate), so the service runs
// without Redis configured.
type Cache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// New creates a cache backed by the given Redis address. Returns nil (cache
// disabled) when addr is empty.
func New(addr, password string, db int, defaultTTL time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		defaultTTL: defaultTTL,
	}
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Get returns the cached value for key, with ok=false on miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set stores val under key. A non-positive ttl falls back to the default.
func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// Invalidate removes key. Callers invalidate after every write that could
// change the cached view.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, key).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
