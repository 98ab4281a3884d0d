// Package cache holds decoded images and in-flight reservations for them.
//
// An entry moves Pending -> Ready or Pending -> Failed and never back.
// Resident entries are evicted least-recently-displayed first; entries in
// the pinned set are never evicted.
package cache

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/pool"
)

// State is the availability of a key in the cache
type State int

const (
	StateAbsent State = iota
	StatePending
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// failedCost is the nominal size charged for a remembered failure
const failedCost = 1 << 10

// Lookup is the result of a cache query
type Lookup struct {
	State  State
	Handle pool.Handle // Set when Pending and the task has been submitted
	Image  *domain.DecodedImage
	Err    error
}

// Stats is a point-in-time snapshot of cache counters
type Stats struct {
	Entries   int
	Pending   int
	Ready     int
	Failed    int
	Pinned    int
	Bytes     int64
	Capacity  int64
	Hits      int64
	Misses    int64
	Evictions int64
}

type entry struct {
	key    domain.LoadKey
	state  State
	handle pool.Handle
	image  *domain.DecodedImage
	err    error
	size   int64
	stale  bool          // Invalidated while pending; the result is discarded
	elem   *list.Element // Position in the LRU once resident
}

// LoadCache is safe for concurrent use by workers, the coordinator, and
// the presentation layer.
type LoadCache struct {
	logger   *slog.Logger
	capacity int64

	mu      sync.RWMutex
	entries map[domain.LoadKey]*entry
	lru     *list.List // Front is most recently displayed
	pinned  map[domain.LoadKey]struct{}
	size    int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache bounded to capacity bytes of decoded pixels
func New(capacity int64, logger *slog.Logger) *LoadCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadCache{
		logger:   logger,
		capacity: capacity,
		entries:  make(map[domain.LoadKey]*entry),
		lru:      list.New(),
		pinned:   make(map[domain.LoadKey]struct{}),
	}
}

// GetOrReserve atomically reports the state of key. When the key is absent
// a Pending entry is created and Absent is returned: the caller now owns the
// reservation and must follow up with SetHandle, Complete, Fail or Release.
func (c *LoadCache) GetOrReserve(key domain.LoadKey) Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.stale {
		c.hits.Add(1)
		return e.lookup()
	}
	c.misses.Add(1)
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = &entry{key: key, state: StatePending}
		return Lookup{State: StateAbsent}
	}
	// A stale in-flight entry still blocks a second task for the key
	return Lookup{State: StatePending}
}

// SetHandle records the pool handle serving a reservation
func (c *LoadCache) SetHandle(key domain.LoadKey, h pool.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.state == StatePending {
		e.handle = h
	}
}

// Complete moves a pending entry to Ready. It reports false when the entry
// was released or invalidated in the meantime and the image was dropped.
func (c *LoadCache) Complete(key domain.LoadKey, img *domain.DecodedImage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.state != StatePending {
		return false
	}
	if e.stale {
		delete(c.entries, key)
		return false
	}
	e.state = StateReady
	e.image = img
	e.handle = 0
	c.admit(e, img.Bytes())
	return true
}

// Fail moves a pending entry to Failed. Failures are remembered and not
// retried until the key is invalidated.
func (c *LoadCache) Fail(key domain.LoadKey, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.state != StatePending {
		return false
	}
	if e.stale {
		delete(c.entries, key)
		return false
	}
	e.state = StateFailed
	e.err = err
	e.handle = 0
	c.admit(e, failedCost)
	return true
}

// Release drops a reservation whose task will never run
func (c *LoadCache) Release(key domain.LoadKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.state == StatePending {
		delete(c.entries, key)
	}
}

// Get peeks at key without reserving or counting. It never blocks on a decode.
func (c *LoadCache) Get(key domain.LoadKey) Lookup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.stale {
		return Lookup{State: StateAbsent}
	}
	return e.lookup()
}

// Touch marks key as just displayed
func (c *LoadCache) Touch(key domain.LoadKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.elem != nil {
		c.lru.MoveToFront(e.elem)
	}
}

// Pin replaces the pinned set. Entries leaving the set become evictable.
func (c *LoadCache) Pin(keys []domain.LoadKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = make(map[domain.LoadKey]struct{}, len(keys))
	for _, k := range keys {
		c.pinned[k] = struct{}{}
	}
	c.evict()
}

// IsPinned reports whether key is in the pinned set
func (c *LoadCache) IsPinned(key domain.LoadKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pinned[key]
	return ok
}

// Invalidate drops the entry for key. An in-flight entry is marked stale so
// its eventual result is discarded.
func (c *LoadCache) Invalidate(key domain.LoadKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.drop(e)
	return true
}

// InvalidateItem drops every variant cached for id
func (c *LoadCache) InvalidateItem(id domain.ItemID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if k.Item == id {
			c.drop(e)
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("invalidated item", "item", id, "entries", n)
	}
	return n
}

// Size returns the resident size in bytes
func (c *LoadCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Stats returns a snapshot of the cache counters
func (c *LoadCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Entries:   len(c.entries),
		Pinned:    len(c.pinned),
		Bytes:     c.size,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	for _, e := range c.entries {
		switch e.state {
		case StatePending:
			s.Pending++
		case StateReady:
			s.Ready++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

func (e *entry) lookup() Lookup {
	return Lookup{State: e.state, Handle: e.handle, Image: e.image, Err: e.err}
}

// admit makes e resident at the cold end of the LRU; caller holds mu.
// A result nobody has displayed yet is the first candidate for eviction.
func (c *LoadCache) admit(e *entry, size int64) {
	e.size = size
	e.elem = c.lru.PushBack(e)
	c.size += size
	c.evict()
}

// drop removes e entirely, or marks it stale if it is still pending; caller holds mu
func (c *LoadCache) drop(e *entry) {
	if e.state == StatePending {
		e.stale = true
		return
	}
	c.removeResident(e)
	delete(c.entries, e.key)
}

func (c *LoadCache) removeResident(e *entry) {
	if e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
		c.size -= e.size
	}
}

// evict walks from the cold end skipping pinned entries; caller holds mu.
// Pinned entries may hold the cache above capacity.
func (c *LoadCache) evict() {
	el := c.lru.Back()
	for c.size > c.capacity && el != nil {
		prev := el.Prev()
		e := el.Value.(*entry)
		if _, pinned := c.pinned[e.key]; !pinned {
			c.removeResident(e)
			delete(c.entries, e.key)
			c.evictions.Add(1)
			c.logger.Debug("evicted", "key", e.key.String(), "bytes", e.size)
		}
		el = prev
	}
}
