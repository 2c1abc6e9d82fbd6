package tzcache

import (
	"sync"
	"time"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/observability"
)

// CachedLoader wraps a LocationLoader with an in-memory LRU cache so each
// zone file is read from the tz database once.
type CachedLoader struct {
	inner   domain.LocationLoader
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLoader creates a cache decorator around a location loader.
// Metrics may be nil.
func NewCachedLoader(inner domain.LocationLoader, maxEntries int, metrics *observability.Metrics) *CachedLoader {
	if inner == nil {
		inner = domain.StdLocationLoader{}
	}
	return &CachedLoader{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLoader) LoadLocation(name string) (*time.Location, error) {
	if loc, ok := c.cache.get(name); ok {
		c.observe("hit")
		return loc, nil
	}
	c.observe("miss")
	loc, err := c.inner.LoadLocation(name)
	if err != nil {
		// Failures are not cached so a zone installed later can still load.
		return nil, err
	}
	c.cache.put(name, loc)
	return loc, nil
}

func (c *CachedLoader) observe(result string) {
	if c.metrics != nil {
		c.metrics.TZCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a thread-safe LRU of resolved locations keyed by zone name.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *time.Location
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*time.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *time.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
