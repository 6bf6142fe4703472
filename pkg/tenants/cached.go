package tenants

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRegistry memoizes successful lookups for a short TTL. Misses and errors
// are not cached, so a newly registered building is visible immediately while a
// deactivated one is rejected at most ttl later.
type CachedRegistry struct {
	inner Registry
	cache *expirable.LRU[string, Entry]
}

// NewCachedRegistry wraps inner with an LRU of size entries that expire after ttl.
// A ttl <= 0 disables caching; every Lookup then reaches inner.
func NewCachedRegistry(inner Registry, size int, ttl time.Duration) *CachedRegistry {
	if ttl <= 0 {
		return &CachedRegistry{inner: inner}
	}
	if size <= 0 {
		size = 256
	}
	return &CachedRegistry{
		inner: inner,
		cache: expirable.NewLRU[string, Entry](size, nil, ttl),
	}
}

func (c *CachedRegistry) Lookup(ctx context.Context, schema string) (Entry, error) {
	if c.cache == nil {
		return c.inner.Lookup(ctx, schema)
	}
	if e, ok := c.cache.Get(schema); ok {
		return e, nil
	}
	e, err := c.inner.Lookup(ctx, schema)
	if err != nil {
		return Entry{}, err
	}
	c.cache.Add(schema, e)
	return e, nil
}

func (c *CachedRegistry) ListActive(ctx context.Context) ([]Entry, error) {
	return c.inner.ListActive(ctx)
}

// Purge drops every cached entry.
func (c *CachedRegistry) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}
