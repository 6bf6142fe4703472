package permissions

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bldgate/pkg/metrics"
)

// Loader fetches a fresh value. It receives a context detached from the caller's
// cancellation but bounded by the cache timeout.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache is a process-wide TTL cache with single-flight refresh.
//
// Concurrent callers that find the value missing or expired share one Loader
// call. When a refresh fails the last value is served even if expired. A result
// for which Empty reports true is returned but not stored.
type Cache[T any] struct {
	name    string
	ttl     time.Duration
	timeout time.Duration
	load    Loader[T]
	empty   func(T) bool
	now     func() time.Time
	swr     bool

	mu      sync.RWMutex
	val     T
	has     bool
	expires time.Time

	group singleflight.Group

	// test hook, runs after a caller has joined the in-flight refresh
	afterJoin func()
}

// CacheOption customizes a Cache.
type CacheOption[T any] func(*Cache[T])

// WithEmpty marks values that must not be cached.
func WithEmpty[T any](empty func(T) bool) CacheOption[T] {
	return func(c *Cache[T]) { c.empty = empty }
}

// WithTimeout bounds each Loader call.
func WithTimeout[T any](d time.Duration) CacheOption[T] {
	return func(c *Cache[T]) { c.timeout = d }
}

// WithStaleWhileRevalidate makes Get return an expired value immediately and
// refresh it in the background, so callers never wait on a slow upstream once a
// value has been loaded.
func WithStaleWhileRevalidate[T any]() CacheOption[T] {
	return func(c *Cache[T]) { c.swr = true }
}

// WithClock overrides time.Now.
func WithClock[T any](now func() time.Time) CacheOption[T] {
	return func(c *Cache[T]) { c.now = now }
}

// NewCache returns an empty cache. name labels metrics and the single-flight key.
func NewCache[T any](name string, ttl time.Duration, load Loader[T], opts ...CacheOption[T]) *Cache[T] {
	c := &Cache[T]{
		name:    name,
		ttl:     ttl,
		timeout: 10 * time.Second,
		load:    load,
		empty:   func(T) bool { return false },
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached value, refreshing it when missing or expired. It returns
// early with ctx.Err() if ctx is done while waiting; the refresh itself carries on
// for the other waiters.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(); ok {
		return v, nil
	}
	ch := c.group.DoChan(c.name, func() (any, error) {
		return c.refresh(ctx)
	})
	if c.swr {
		if stale, ok := c.Peek(); ok {
			// ch is buffered; the refresh stores its result without a reader
			metrics.IAMFetches.WithLabelValues(c.name, "revalidate").Inc()
			return stale, nil
		}
	}
	if c.afterJoin != nil {
		c.afterJoin()
	}
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero T
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

// Invalidate drops the cached value so the next Get refreshes.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.val, c.has, c.expires = zero, false, time.Time{}
}

// Peek returns the stored value regardless of expiry.
func (c *Cache[T]) Peek() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val, c.has
}

func (c *Cache[T]) fresh() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.has && c.now().Before(c.expires) {
		return c.val, true
	}
	var zero T
	return zero, false
}

func (c *Cache[T]) refresh(ctx context.Context) (T, error) {
	// a flight that finished just before this one may already have stored a value
	if v, ok := c.fresh(); ok {
		return v, nil
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	start := time.Now()
	v, err := c.load(fctx)
	metrics.IAMFetchSeconds.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if stale, ok := c.Peek(); ok {
			metrics.IAMFetches.WithLabelValues(c.name, "stale").Inc()
			return stale, nil
		}
		metrics.IAMFetches.WithLabelValues(c.name, "error").Inc()
		var zero T
		return zero, err
	}
	if c.empty(v) {
		metrics.IAMFetches.WithLabelValues(c.name, "empty").Inc()
		c.Invalidate()
		return v, nil
	}

	metrics.IAMFetches.WithLabelValues(c.name, "ok").Inc()
	c.mu.Lock()
	c.val, c.has, c.expires = v, true, c.now().Add(c.ttl)
	c.mu.Unlock()
	return v, nil
}
