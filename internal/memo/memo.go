package memo

import (
	"sync"
	"time"
)

// Clock supplies the current time. Tests inject a fake one.
type Clock func() time.Time

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a time-bounded memoizer: Get returns the cached value for a
// key while it is fresh, otherwise runs the fill function and caches
// its result. A TTL of zero means entries never expire.
//
// The lock is held across the fill call on purpose: concurrent callers
// for the same cache coalesce onto a single upstream fetch, which is
// what bounds outbound polling to one call per TTL window regardless of
// client request rate.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[K]entry[V]
}

func New[K comparable, V any](ttl time.Duration, clock Clock) *Cache[K, V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[K, V]{
		ttl:     ttl,
		now:     clock,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the fresh cached value for key, or fills and caches a new
// one. A fill error is returned as-is and nothing is cached.
func (c *Cache[K, V]) Get(key K, fill func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		if c.ttl == 0 || e.expires.After(now) {
			return e.value, nil
		}
		delete(c.entries, key)
	}

	value, err := fill()
	if err != nil {
		var zero V
		return zero, err
	}

	c.entries[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
	return value, nil
}

// Invalidate drops the entry for key, forcing the next Get to refill.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of cached entries, counting expired ones that
// have not been touched since expiry.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
