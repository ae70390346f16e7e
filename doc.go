// Package hoard provides a bounded, generic in-memory cache with LRU
// eviction, TTL expiration, tag-based invalidation, and typed
// lifecycle events.
//
// # Overview
//
// Hoard is a type-safe, concurrent cache for Go applications. Capacity
// is bounded by entry count, total estimated bytes, or both; under
// pressure the least-recently-used entries are evicted first. Entries
// may carry invalidation tags so a group of related keys can be removed
// in one call, and every lifecycle transition (set, hit, miss, delete,
// evict, expire, clear, invalidate) is published to subscribers as a
// typed event.
//
// # Basic Usage
//
// Create a cache with at least one capacity bound and perform basic
// operations:
//
//	cache, err := hoard.New[string, int](
//		hoard.WithMaxEntries[string, int](1000),
//		hoard.WithDefaultTTL[string, int](5*time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//
//	cache.Set("answer", 42)
//
//	if v, ok := cache.Get("answer"); ok {
//		fmt.Println(v)
//	}
//
//	cache.Delete("answer")
//
// # Tags
//
// Attach tags at write time and invalidate them in bulk after the
// underlying data changes:
//
//	cache.Set("user:1", alice, hoard.Tags("users"))
//	cache.Set("user:2", bob, hoard.Tags("users"))
//
//	n := cache.InvalidateTag("users") // n == 2
//
// # Capacity and Sizing
//
// Byte bounds use a size estimate per value. The default estimator
// walks values reflectively with bounded depth; values implementing
// [Sizer] report their own footprint, and WithSizeFunc replaces the
// estimator outright:
//
//	cache, err := hoard.New[string, []byte](
//		hoard.WithMaxBytes[string, []byte](100*1024*1024),
//		hoard.WithSizeFunc[string, []byte](func(v []byte) int64 {
//			return int64(len(v))
//		}),
//	)
//
// # Events
//
// Subscribe to lifecycle events for metrics and logging. Handlers run
// synchronously while the cache lock is held, so they must not call
// back into the same cache:
//
//	sub := cache.Subscribe(hoard.EventEvict, func(ev hoard.Event[string, int]) {
//		e := ev.(hoard.EvictEvent[string, int])
//		logger.Debug("evicted", "key", e.Key, "reason", e.Reason)
//	})
//	defer cache.Unsubscribe(sub)
//
// A handler that panics is recovered and logged; it never affects other
// handlers or the operation that emitted the event.
//
// # Automatic Loading
//
// Use a loader function to compute missing entries. Concurrent loads
// for the same key are deduplicated:
//
//	cache, err := hoard.New[string, *User](
//		hoard.WithMaxEntries[string, *User](1000),
//		hoard.WithLoader(func(ctx context.Context, id string) (*User, error) {
//			return db.GetUser(ctx, id)
//		}),
//	)
//
//	user, err := cache.GetOrLoad(ctx, "user:123")
//
// # Expiry
//
// Expired entries are discovered lazily: the Get or Has that encounters
// one removes it and reports the key absent. WithSweepInterval adds a
// background goroutine that reclaims dead entries proactively using the
// same accounting; it changes when memory is reclaimed, not what
// callers observe. Call Close to stop the sweep.
//
// # Testing
//
// Inject a custom clock to control time in tests:
//
//	type fakeClock struct{ now time.Time }
//	func (c *fakeClock) Now() time.Time { return c.now }
//
//	clk := &fakeClock{now: time.Now()}
//	cache := hoard.MustNew[string, int](
//		hoard.WithMaxEntries[string, int](10),
//		hoard.WithDefaultTTL[string, int](time.Minute),
//		hoard.WithClock[string, int](clk),
//	)
//
//	cache.Set("key", 42)
//	clk.now = clk.now.Add(2 * time.Minute) // TTL expired
//	_, ok := cache.Get("key")              // ok == false
//
// # Thread Safety
//
// All Cache methods are safe for concurrent use. The cache uses a
// single sync.Mutex per instance: the entry table, tag index, and
// recency order are consistent only as a unit, so no finer-grained
// locking applies.
package hoard
