package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

type lru[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List // front = most recent
	elements map[string]*list.Element
	stats    Stats
}

// NewLRU returns a Cache holding at most capacity entries. A capacity below
// one yields a cache that stores nothing.
func NewLRU[V any](capacity int, opts ...Option) Cache[V] {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &lru[V]{
		capacity: capacity,
		ttl:      o.ttl,
		now:      o.now,
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (c *lru[V]) Set(key string, value V) {
	if c.capacity < 1 {
		return
	}

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.elements[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	// Evict from back when at capacity.
	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.removeElement(back)
			c.stats.Evictions++
		}
	}

	c.elements[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

func (c *lru[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.elements[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	e := elem.Value.(*entry[V])

	// Lazy TTL eviction.
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.stats.Misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

func (c *lru[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.elements[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

func (c *lru[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.elements = make(map[string]*list.Element)
}

func (c *lru[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lru[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// removeElement must be called with mu held.
func (c *lru[V]) removeElement(elem *list.Element) {
	e := c.order.Remove(elem).(*entry[V])
	delete(c.elements, e.key)
}
