package pricing

import (
	"sync"
	"time"
)

// refCache is a small TTL cache for coefficient reference data. The
// reference tables change on the refresh cadence, not per request, so a
// short TTL keeps price lookups off the store without serving stale data
// for long.
type refCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]refEntry[T]
}

type refEntry[T any] struct {
	value   T
	expires time.Time
}

func newRefCache[T any](ttl time.Duration) *refCache[T] {
	return &refCache[T]{
		ttl:     ttl,
		entries: make(map[string]refEntry[T]),
	}
}

func (c *refCache[T]) get(key string, now time.Time) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.After(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *refCache[T]) put(key string, value T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = refEntry[T]{value: value, expires: now.Add(c.ttl)}
}

// reset drops all entries. Called after a coefficient refresh.
func (c *refCache[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]refEntry[T])
}
