// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a bounded LRU cache for device objects that are
// expensive to build and must be released when evicted, such as render
// pipelines keyed by fixed-function state.
//
//	c := cache.New[pipelineKey, hal.RenderPipeline](64, func(_ pipelineKey, p hal.RenderPipeline) {
//		device.DestroyRenderPipeline(p)
//	})
//	p, err := c.GetOrCreate(key, build)
//
// Cache is used from the render goroutine only and is not safe for
// concurrent use.
package cache

// node is an element of the recency list.
type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// Cache is an LRU cache holding at most Capacity entries.
// The head of the recency list is the most recently used entry.
type Cache[K comparable, V any] struct {
	entries  map[K]*node[K, V]
	head     *node[K, V]
	tail     *node[K, V]
	capacity int
	onEvict  func(K, V)
	stats    Stats
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a cache holding at most capacity entries. A capacity of 0
// means unlimited. onEvict, if non-nil, is called for every entry that
// leaves the cache through eviction, Delete or Clear.
func New[K comparable, V any](capacity int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]*node[K, V]),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	n, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.moveToFront(n)
	return n.value, true
}

// Set stores value under key, replacing and releasing any previous value.
func (c *Cache[K, V]) Set(key K, value V) {
	if n, ok := c.entries[key]; ok {
		old := n.value
		n.value = value
		c.moveToFront(n)
		if c.onEvict != nil {
			c.onEvict(key, old)
		}
		return
	}
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.pushFront(n)
	c.trim()
}

// GetOrCreate returns the cached value for key, or builds it with create
// and stores it. A failed create stores nothing.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.remove(n)
	return true
}

// DeleteFunc removes every entry whose key satisfies del and returns the
// number removed.
func (c *Cache[K, V]) DeleteFunc(del func(K) bool) int {
	removed := 0
	for n := c.head; n != nil; {
		next := n.next
		if del(n.key) {
			c.remove(n)
			removed++
		}
		n = next
	}
	return removed
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	for c.tail != nil {
		c.remove(c.tail)
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	s := c.stats
	s.Len = len(c.entries)
	s.Capacity = c.capacity
	return s
}

func (c *Cache[K, V]) trim() {
	if c.capacity <= 0 {
		return
	}
	for len(c.entries) > c.capacity {
		c.stats.Evictions++
		c.remove(c.tail)
	}
}

func (c *Cache[K, V]) remove(n *node[K, V]) {
	c.unlink(n)
	delete(c.entries, n.key)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
