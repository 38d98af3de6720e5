// Package cache provides the read-through cache behind the aggregate views.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"askingwho-backend/application/ports"
)

// DefaultSize is the number of keys kept when no size is configured
const DefaultSize = 256

// Stats receives hit and miss counts
type Stats interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a bounded LRU where every entry carries its own expiry. Concurrent
// misses on one key share a single load. Failed loads are not cached.
type Cache struct {
	name    string
	entries *lru.Cache[string, entry]
	group   singleflight.Group
	stats   Stats
	now     func() time.Time
	logger  *zap.Logger
}

var _ ports.Cache = (*Cache)(nil)

// Option configures a Cache
type Option func(*Cache)

// WithStats reports hits and misses to s
func WithStats(s Stats) Option {
	return func(c *Cache) { c.stats = s }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache holding at most size keys
func New(name string, size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache %s: %w", name, err)
	}
	c := &Cache{
		name:    name,
		entries: entries,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrLoad returns the fresh value under key or stores the result of load
// for ttl. A non-positive ttl bypasses the cache entirely.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if ttl <= 0 {
		return load(ctx)
	}
	if v, ok := c.fresh(key); ok {
		c.hit()
		return v, nil
	}
	c.miss()

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, entry{value: v, expiresAt: c.now().Add(ttl)})
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Cache load shared", zap.String("cache", c.name), zap.String("key", key))
		}
		return res.Val, nil
	}
}

func (c *Cache) fresh(key string) (interface{}, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Invalidate drops key
func (c *Cache) Invalidate(key string) {
	c.entries.Remove(key)
	c.group.Forget(key)
}

// Purge drops every key
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of stored keys, including expired ones not yet evicted
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) hit() {
	if c.stats != nil {
		c.stats.CacheHit(c.name)
	}
}

func (c *Cache) miss() {
	if c.stats != nil {
		c.stats.CacheMiss(c.name)
	}
}
