// ABOUTME: TTL cache over recently seen JSON-RPC request identifiers.
// ABOUTME: Lets the dispatcher flag transport-level redeliveries of a request.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers request keys for a bounded time and count. Keys are
// arbitrary strings; the dispatcher uses "method:id". Insertion order is
// kept in a linked list so eviction at capacity is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest key at the front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache that forgets keys after ttl and holds at most maxSize
// entries. A background goroutine sweeps expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// CheckAndMark reports whether key was already seen within the TTL, marking
// it as seen either way. The check and mark are one critical section so two
// concurrent deliveries of the same request cannot both see "new".
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok && c.now().Sub(e.seenAt) < c.ttl {
		c.touch(e)
		return true
	}
	c.markLocked(key)
	return false
}

// Check reports whether key was seen within the TTL, without marking it.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.seen[key]
	return ok && c.now().Sub(e.seenAt) < c.ttl
}

// Mark records key as seen without reporting prior state.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) touch(e *entry) {
	e.seenAt = c.now()
	c.order.MoveToBack(e.element)
}

func (c *Cache) markLocked(key string) {
	if e, ok := c.seen[key]; ok {
		c.touch(e)
		return
	}
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[key] = &entry{
		seenAt:  c.now(),
		element: c.order.PushBack(key),
	}
}

// evictOldest drops the entry at the front of the order list. Caller holds mu.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes every expired entry.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	for key, e := range c.seen {
		if e.seenAt.Before(cutoff) {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
