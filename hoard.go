package hoard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a bounded, generic in-memory cache with LRU eviction, TTL
// expiration, tag-based invalidation, and typed lifecycle events.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	cfg       config[K, V]
	data      map[K]*entry[V]
	order     *lruOrder[K]
	tags      *tagIndex[K]
	events    *emitter[K, V]
	mon       *monitor
	stats     stats
	usedBytes int64

	// single-flight for loader
	group singleflight.Group

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
	closed      bool
}

// New creates a Cache with the given options. At least one capacity
// bound (WithMaxEntries or WithMaxBytes) must be configured.
func New[K comparable, V any](opts ...Option[K, V]) (*Cache[K, V], error) {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.estimator == nil {
		cfg.estimator = newReflectEstimator[V](cfg.logger)
	}

	c := &Cache[K, V]{
		cfg:    cfg,
		data:   make(map[K]*entry[V]),
		order:  newLRUOrder[K](),
		tags:   newTagIndex[K](),
		events: newEmitter[K, V](cfg.logger),
		mon:    newMonitor(cfg.thresholds),
	}
	if cfg.sweepEvery > 0 {
		c.startSweep()
	}
	return c, nil
}

// MustNew is New that panics on configuration errors.
func MustNew[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c, err := New[K, V](opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get retrieves a value from the cache. An expired entry is removed and
// reported as absent. A hit moves the key to the most-recently-used
// position and updates its access metadata.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	started := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.observe(OpGet, started)

	return c.get(key)
}

// get is the internal get without locking.
func (c *Cache[K, V]) get(key K) (V, bool) {
	var zero V

	ent, ok := c.data[key]
	if !ok {
		c.stats.miss()
		c.events.emit(MissEvent[K]{Key: key})
		return zero, false
	}

	now := c.cfg.clock.Now()
	if ent.isExpired(now) {
		c.removeEntry(key, ent)
		c.stats.expire()
		c.events.emit(ExpireEvent[K, V]{Key: key, Value: ent.value})
		c.stats.miss()
		c.events.emit(MissEvent[K]{Key: key})
		return zero, false
	}

	c.order.touch(key)
	ent.lastAccessed = now
	ent.accessCount++
	c.stats.hit()
	c.events.emit(HitEvent[K, V]{Key: key, Value: ent.value})
	return ent.value, true
}

// Set adds or updates a value. Per-call options override the default
// TTL and attach invalidation tags; re-setting a key replaces its tags
// rather than merging them. When inserting would exceed a capacity
// bound, least-recently-used entries are evicted first.
//
// A value whose estimated size exceeds WithMaxEntrySize is rejected
// with *EntryTooLargeError and the cache is left unmodified. A value
// that can never fit within WithMaxBytes is not an error: the write is
// skipped and logged, because the cache is an optimization layer.
func (c *Cache[K, V]) Set(key K, value V, opts ...SetOption) error {
	started := time.Now()
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}
	ttl := c.cfg.defaultTTL
	if so.hasTTL {
		ttl = so.ttl
	}
	tags := normalizeTags(so.tags)
	size := c.cfg.estimator.Estimate(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.observe(OpSet, started)

	if c.cfg.maxEntrySize > 0 && size > c.cfg.maxEntrySize {
		return &EntryTooLargeError{Size: size, Max: c.cfg.maxEntrySize}
	}

	// An explicitly expired write stores nothing. Observers still see
	// the set; the next read is an ordinary miss.
	if so.hasTTL && ttl <= 0 {
		if old, ok := c.data[key]; ok {
			c.removeEntry(key, old)
		}
		c.events.emit(SetEvent[K, V]{Key: key, Value: value, Size: size, Tags: tags})
		return nil
	}

	if c.cfg.maxBytesSet && size > c.cfg.maxBytes {
		c.cfg.logger.Warn("hoard: value exceeds byte capacity, not cached",
			"size", size, "max_bytes", c.cfg.maxBytes)
		return nil
	}

	// Replacing a key frees its old footprint before the capacity check
	// and detaches its old tags.
	if old, ok := c.data[key]; ok {
		c.removeEntry(key, old)
	}

	c.evictFor(size)

	now := c.cfg.clock.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.data[key] = &entry[V]{
		value:        value,
		tags:         tags,
		size:         size,
		createdAt:    now,
		lastAccessed: now,
		expiresAt:    expiresAt,
	}
	c.order.trackNew(key)
	c.tags.index(key, tags)
	c.usedBytes += size
	c.events.emit(SetEvent[K, V]{Key: key, Value: value, Size: size, Tags: tags})
	return nil
}

// GetOrLoad retrieves a value, computing it through the configured
// loader on a miss. Concurrent loads for the same key collapse to a
// single loader call. Without a loader it behaves like Get with the
// found flag dropped.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	var zero V

	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if c.cfg.loader == nil {
		return zero, nil
	}

	// singleflight keys are strings; %v is stable for comparable keys
	sfKey := fmt.Sprintf("%v", key)
	v, err, _ := c.group.Do(sfKey, func() (any, error) {
		// another goroutine may have stored it while we queued
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		val, err := c.cfg.loader(ctx, key)
		if err != nil {
			return nil, err
		}
		// Caching the loaded value is best effort: the caller asked for
		// the value, not for it to be stored.
		if serr := c.Set(key, val); serr != nil {
			c.cfg.logger.Warn("hoard: loaded value could not be cached", "error", serr)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(V), nil
}

// Has reports whether key holds a live entry. Like Get it removes an
// entry it discovers expired, but it does not touch recency, access
// metadata, or hit/miss counters.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.data[key]
	if !ok {
		return false
	}
	if ent.isExpired(c.cfg.clock.Now()) {
		c.removeEntry(key, ent)
		c.stats.expire()
		c.events.emit(ExpireEvent[K, V]{Key: key, Value: ent.value})
		return false
	}
	return true
}

// Delete removes key and reports whether anything was removed.
func (c *Cache[K, V]) Delete(key K) bool {
	started := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.observe(OpDelete, started)

	ent, ok := c.data[key]
	if !ok {
		return false
	}
	c.removeEntry(key, ent)
	c.events.emit(DeleteEvent[K, V]{Key: key, Value: ent.value})
	return true
}

// InvalidateTag removes every entry carrying tag and returns the count.
// Each removal emits an evict event with ReasonTag, followed by one
// aggregate invalidate event. An unknown tag removes nothing.
func (c *Cache[K, V]) InvalidateTag(tag string) int {
	started := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.observe(OpInvalidate, started)

	removed := 0
	for _, key := range c.tags.keysFor(tag) {
		ent, ok := c.data[key]
		if !ok {
			continue
		}
		c.removeEntry(key, ent)
		c.stats.evict()
		c.events.emit(EvictEvent[K, V]{Key: key, Value: ent.value, Reason: ReasonTag})
		removed++
	}
	c.events.emit(InvalidateEvent{Tag: tag, Removed: removed})
	return removed
}

// Clear removes all entries and resets the tag index, recency order,
// and byte accounting. Statistics are cumulative for the cache's
// lifetime and survive Clear; use ResetStats to zero them.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.data)
	c.data = make(map[K]*entry[V])
	c.order.reset()
	c.tags.reset()
	c.usedBytes = 0
	c.events.emit(ClearEvent{Entries: n})
}

// Len returns the number of entries in the cache.
// May include expired entries that haven't been discovered yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// UsedBytes returns the summed size estimate of all live entries.
func (c *Cache[K, V]) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.usedBytes
}

// Keys returns a snapshot of the cached keys, most recently used first.
// May include expired entries that haven't been discovered yet.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.keysMRU()
}

// KeysForTag returns a snapshot of the keys carrying tag.
func (c *Cache[K, V]) KeysForTag(tag string) []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tags.keysFor(tag)
}

// Stats returns a snapshot of cache statistics.
func (c *Cache[K, V]) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats.snapshot(len(c.data), c.usedBytes)
}

// ResetStats zeroes all cumulative counters and latency averages.
func (c *Cache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = stats{}
}

// Subscribe registers a handler for one event kind and returns a
// handle for Unsubscribe. Handlers for a kind run in registration
// order, synchronously with the operation that emits the event.
func (c *Cache[K, V]) Subscribe(kind EventKind, fn Handler[K, V]) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.events.on(kind, fn)
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (c *Cache[K, V]) Unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events.off(sub)
}

// Alerts returns advisory latency alerts for operation kinds whose
// recent average exceeds a threshold set with WithThreshold.
func (c *Cache[K, V]) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mon.checkThresholds()
}

// evictFor removes least-recently-used entries until an insert of the
// given size fits within both capacity bounds.
func (c *Cache[K, V]) evictFor(size int64) {
	var bytesNeeded int64
	if c.cfg.maxBytesSet {
		if over := c.usedBytes + size - c.cfg.maxBytes; over > 0 {
			bytesNeeded = over
		}
	}
	countNeeded := 0
	if c.cfg.maxEntriesSet {
		if over := len(c.data) + 1 - c.cfg.maxEntries; over > 0 {
			countNeeded = over
		}
	}
	if bytesNeeded == 0 && countNeeded == 0 {
		return
	}

	victims := c.order.selectVictims(bytesNeeded, countNeeded, func(k K) int64 {
		if ent, ok := c.data[k]; ok {
			return ent.size
		}
		return 0
	})
	for _, key := range victims {
		ent, ok := c.data[key]
		if !ok {
			continue
		}
		c.removeEntry(key, ent)
		c.stats.evict()
		c.events.emit(EvictEvent[K, V]{Key: key, Value: ent.value, Reason: ReasonCapacity})
	}
}

// removeEntry detaches an entry from the table, the recency order, the
// tag index, and the byte accounting. Callers emit the event that
// explains the removal.
func (c *Cache[K, V]) removeEntry(key K, ent *entry[V]) {
	delete(c.data, key)
	c.order.remove(key)
	c.tags.deindex(key, ent.tags)
	c.usedBytes -= ent.size
}

func (c *Cache[K, V]) observe(op Op, started time.Time) {
	d := time.Since(started)
	switch op {
	case OpGet:
		c.stats.getLatency.record(d)
	case OpSet:
		c.stats.setLatency.record(d)
	}
	c.mon.record(op, d)
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
