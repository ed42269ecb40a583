package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"restaurant-pos/internal/metrics"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     []byte
	deadline  time.Time // absolute; zero means none
	idleUntil time.Time // sliding; zero means none
	sliding   time.Duration
}

func (e *entry) expired(now time.Time) bool {
	if !e.deadline.IsZero() && !now.Before(e.deadline) {
		return true
	}
	return !e.idleUntil.IsZero() && !now.Before(e.idleUntil)
}

func (e *entry) touch(now time.Time) {
	if e.sliding <= 0 {
		return
	}
	next := now.Add(e.sliding)
	if !e.deadline.IsZero() && next.After(e.deadline) {
		next = e.deadline
	}
	e.idleUntil = next
}

// MemoryCache is an in-process Cache. Concurrent misses on one key share a single loader
// call, and a fill that started before an invalidation is discarded instead of stored.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	inflight   map[string]struct{}
	group      singleflight.Group
	now        func() time.Time
}

type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[string]*entry),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) GetOrCompute(ctx context.Context, key string, exp Expiration, load Loader) ([]byte, error) {
	if v, ok := c.get(key); ok {
		metrics.CacheRequests.WithLabelValues("memory", "hit").Inc()
		return v, nil
	}
	metrics.CacheRequests.WithLabelValues("memory", "miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		c.mu.Lock()
		gen := c.generation
		c.inflight[key] = struct{}{}
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()

		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, val, exp, gen)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *MemoryCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if e.expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	e.touch(now)
	return e.value, true
}

func (c *MemoryCache) set(key string, value []byte, exp Expiration, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	now := c.now()
	e := &entry{value: value, sliding: exp.Sliding}
	if exp.Absolute > 0 {
		e.deadline = now.Add(exp.Absolute)
	}
	e.touch(now)
	c.entries[key] = e
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for _, k := range keys {
		delete(c.entries, k)
		c.group.Forget(k)
	}
	metrics.CacheInvalidations.WithLabelValues("memory", "key").Inc()
	return nil
}

func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	// Later callers must not join a load that started before this point.
	for k := range c.inflight {
		if strings.HasPrefix(k, prefix) {
			c.group.Forget(k)
		}
	}
	metrics.CacheInvalidations.WithLabelValues("memory", "prefix").Inc()
	return nil
}

// Len counts live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Sweep drops expired entries and reports how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is done.
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
