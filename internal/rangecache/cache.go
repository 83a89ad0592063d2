// Package rangecache caches fetched windows of items keyed by window index.
package rangecache

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/vlist/internal/interval"
)

// DefaultWindowSize is used when a non-positive window size is configured.
const DefaultWindowSize = 100

// Cache maps a window index to the items fetched for that window.
// A window w covers logical indices [w*size, w*size+size-1]; the final
// window of a collection may hold fewer than size items.
//
// A window absent from the cache is "not loaded". Evicted windows are
// dropped entirely and must be fetched again.
type Cache[T any] struct {
	mu sync.RWMutex

	windowSize int
	entries    map[int][]T

	// Stats (atomic for lock-free reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache for windows of the given size.
func New[T any](windowSize int) *Cache[T] {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Cache[T]{
		windowSize: windowSize,
		entries:    make(map[int][]T),
	}
}

// WindowSize returns the number of items per window.
func (c *Cache[T]) WindowSize() int {
	return c.windowSize
}

// WindowOf returns the window index holding the given item index.
func (c *Cache[T]) WindowOf(index int) int {
	return index / c.windowSize
}

// WindowBounds returns the item interval covered by window w.
func (c *Cache[T]) WindowBounds(w int) interval.Interval {
	start := w * c.windowSize
	return interval.Interval{First: start, Last: start + c.windowSize - 1}
}

// Get returns the cached items for window w.
// The returned slice is shared with the cache and must not be modified.
func (c *Cache[T]) Get(w int) ([]T, bool) {
	c.mu.RLock()
	items, ok := c.entries[w]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return items, ok
}

// Has reports whether window w is loaded without touching statistics.
func (c *Cache[T]) Has(w int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[w]
	return ok
}

// Put stores a copy of items as the contents of window w, replacing any
// previous entry. Items beyond the window size are ignored.
func (c *Cache[T]) Put(w int, items []T) {
	n := min(len(items), c.windowSize)
	stored := make([]T, n)
	copy(stored, items[:n])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[w] = stored
}

// Item returns the cached item at a logical index.
func (c *Cache[T]) Item(index int) (T, bool) {
	var zero T
	if index < 0 {
		return zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.entries[index/c.windowSize]
	if !ok {
		return zero, false
	}
	offset := index % c.windowSize
	if offset >= len(items) {
		return zero, false
	}
	return items[offset], true
}

// EvictUntracked removes every window whose item range does not intersect
// the tracked set. Eviction is window-granular: a window that is only
// partly tracked is kept whole. It returns the evicted window indices in
// ascending order.
func (c *Cache[T]) EvictUntracked(tracked interval.Set) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []int
	for w := range c.entries {
		if !tracked.Intersects(c.WindowBounds(w)) {
			delete(c.entries, w)
			evicted = append(evicted, w)
		}
	}
	sort.Ints(evicted)
	c.evictions.Add(uint64(len(evicted)))
	return evicted
}

// Windows returns the loaded window indices in ascending order.
func (c *Cache[T]) Windows() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]int, 0, len(c.entries))
	for w := range c.entries {
		result = append(result, w)
	}
	sort.Ints(result)
	return result
}

// Len returns the number of loaded windows.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every window and returns how many were loaded.
func (c *Cache[T]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[int][]T)
	c.evictions.Add(uint64(n))
	return n
}

// Stats returns cache statistics.
func (c *Cache[T]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	items := 0
	for _, e := range c.entries {
		items += len(e)
	}

	return Stats{
		Windows:    len(c.entries),
		Items:      items,
		WindowSize: c.windowSize,
		Hits:       hits,
		Misses:     misses,
		Evictions:  c.evictions.Load(),
		HitRate:    hitRate,
	}
}

// Stats holds cache statistics.
type Stats struct {
	Windows    int
	Items      int
	WindowSize int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	HitRate    float64
}
