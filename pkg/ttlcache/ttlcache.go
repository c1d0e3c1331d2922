// Package ttlcache implements an in-memory, process-lifetime key/value cache
// with per-entry expiry and lazy eviction on read.
package ttlcache

import (
	"sync"
	"time"
)

// entry is a cached value and the instant after which it is no longer served.
type entry[T any] struct {
	data      T
	expiresAt time.Time
}

// Cache is a TTL cache safe for concurrent use. A disabled cache stores nothing
// and never hits.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	enabled bool
	now     func() time.Time
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock overrides the time source used for expiry.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

// New creates a Cache. When enabled is false, Set is a no-op and Get always misses.
func New[T any](enabled bool, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		enabled: enabled,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache stores values.
func (c *Cache[T]) Enabled() bool { return c.enabled }

// Set stores value under key for ttl, overwriting any existing entry.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{data: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Get returns the value stored under key. An expired entry is deleted and reported as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if !c.enabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.data, true
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Len returns the number of physically stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep deletes every expired entry and returns how many were removed.
func (c *Cache[T]) Sweep() int {
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

// expired is the single expiry predicate shared by Get and Sweep.
func (e entry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}
