package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the Redis-backed NotifiedCache. SET NX with a TTL makes the
// test-and-set atomic across processes, so multiple instances sweeping the
// same calendars still notify at most once per occurrence.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a RedisCache over an existing client. A zero ttl
// uses DefaultTTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// MarkIfFirst records the key and reports whether it was new.
func (c *RedisCache) MarkIfFirst(ctx context.Context, key EventKey) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key.String(), 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark notified key: %w", err)
	}
	return ok, nil
}
