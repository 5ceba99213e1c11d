package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process NotifiedCache. Entries expire after the TTL;
// nothing survives a restart, which is acceptable because reminder delivery
// is best-effort by design.
type MemoryCache struct {
	store *gocache.Cache
	mu    sync.Mutex
}

// NewMemoryCache creates a MemoryCache with the given TTL. A zero ttl uses
// DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		store: gocache.New(ttl, ttl/2),
	}
}

// MarkIfFirst records the key and reports whether it was new.
func (c *MemoryCache) MarkIfFirst(_ context.Context, key EventKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	if _, found := c.store.Get(k); found {
		return false, nil
	}
	c.store.SetDefault(k, struct{}{})
	return true, nil
}
