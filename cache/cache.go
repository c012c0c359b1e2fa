// Package cache provides a small, thread-safe generic LRU cache. The
// validator uses it to keep compiled schema engines alive across documents
// without holding every version ever seen in memory.
package cache

import (
	"container/list"
	"sync"
)

// EvictFunc is called with an entry that has been evicted or removed. It
// runs outside the cache lock.
type EvictFunc[K comparable, V any] func(key K, value V)

// LRU is a fixed-capacity least-recently-used cache.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List
	onEvict  EvictFunc[K, V]

	hits   uint64
	misses uint64
}

type pair[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates a cache holding at most capacity entries. A capacity
// below one defaults to 16. onEvict may be nil.
func NewLRU[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) *LRU[K, V] {
	if capacity < 1 {
		capacity = 16
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		onEvict:  onEvict,
	}
}

// Get returns the cached value and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(pair[K, V]).value, true
}

// Put inserts or replaces a value, evicting the least recently used entry
// when the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	var evicted []pair[K, V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		old := el.Value.(pair[K, V])
		el.Value = pair[K, V]{key: key, value: value}
		c.order.MoveToFront(el)
		evicted = append(evicted, old)
	} else {
		if c.order.Len() >= c.capacity {
			if oldest := c.order.Back(); oldest != nil {
				old := oldest.Value.(pair[K, V])
				delete(c.items, old.key)
				c.order.Remove(oldest)
				evicted = append(evicted, old)
			}
		}
		c.items[key] = c.order.PushFront(pair[K, V]{key: key, value: value})
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, p := range evicted {
			c.onEvict(p.key, p.value)
		}
	}
}

// Remove drops a single entry, invoking the eviction hook if present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	var removed pair[K, V]
	if ok {
		removed = el.Value.(pair[K, V])
		delete(c.items, key)
		c.order.Remove(el)
	}
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(removed.key, removed.value)
	}
	return ok
}

// Purge drops every entry, invoking the eviction hook for each.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	var all []pair[K, V]
	for el := c.order.Front(); el != nil; el = el.Next() {
		all = append(all, el.Value.(pair[K, V]))
	}
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, p := range all {
			c.onEvict(p.key, p.value)
		}
	}
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports hit and miss counts since creation.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
