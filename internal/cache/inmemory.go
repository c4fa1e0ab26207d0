package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"

	"github.com/cartpay/cartpay/internal/config"
)

// DefaultExpiration is the fallback expiration when none is configured
const DefaultExpiration = 5 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 10 * time.Minute

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache
type InMemoryCache struct {
	cache *goCache.Cache
}

// NewInMemoryCache creates a new InMemoryCache instance with TTLs taken from
// configuration.
func NewInMemoryCache(cfg *config.Configuration) Cache {
	ttl := DefaultExpiration
	cleanup := DefaultCleanupInterval
	if cfg != nil {
		if cfg.Cache.DefaultTTL > 0 {
			ttl = cfg.Cache.DefaultTTL
		}
		if cfg.Cache.CleanupInterval > 0 {
			cleanup = cfg.Cache.CleanupInterval
		}
	}
	return &InMemoryCache{cache: goCache.New(ttl, cleanup)}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	c.cache.Set(key, value, expiration)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

// Flush removes all items from the cache
func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}
