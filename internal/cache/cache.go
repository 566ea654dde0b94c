// Package cache provides a concurrency-safe TTL cache. A single fixed TTL
// is shared by every entry; entries past the TTL are reported stale on
// lookup but are never removed, so callers can still fall back to a stale
// value when nothing fresher is available.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache maps string keys to values with a freshness bound.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// Option customizes a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source used for freshness decisions.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache whose entries stay fresh for ttl after each Put.
func New[V any](ttl time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key and whether it is still fresh.
// A missing key yields the zero value and false. A stale entry yields
// the stored value with fresh == false and stays in place.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, c.now().Sub(e.insertedAt) <= c.ttl
}

// Put stores value under key, unconditionally overwriting any previous
// entry and restarting its freshness window. On a concurrent double-Put
// the last writer wins; ordering is the caller's concern.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
}

// Has reports whether key is present, regardless of freshness.
func (c *Cache[V]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of entries, fresh and stale alike.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys in no particular order.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// TTL returns the freshness window shared by all entries.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }
