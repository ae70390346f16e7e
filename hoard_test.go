package hoard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time {
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type HoardSuite struct {
	suite.Suite
	clk *mockClock
}

func (s *HoardSuite) SetupTest() {
	s.clk = &mockClock{now: time.Now()}
}

func TestHoardSuite(t *testing.T) {
	suite.Run(t, new(HoardSuite))
}

// newCache builds a count-bounded cache on the suite's clock.
func (s *HoardSuite) newCache(maxEntries int, opts ...Option[string, int]) *Cache[string, int] {
	opts = append([]Option[string, int]{
		WithMaxEntries[string, int](maxEntries),
		WithClock[string, int](s.clk),
	}, opts...)
	return MustNew[string, int](opts...)
}

func (s *HoardSuite) TestGetSet() {
	c := s.newCache(10)

	s.Require().NoError(c.Set("a", 1))
	s.Require().NoError(c.Set("b", 2))

	v, ok := c.Get("a")
	s.True(ok)
	s.Equal(1, v)

	v, ok = c.Get("b")
	s.True(ok)
	s.Equal(2, v)

	_, ok = c.Get("c")
	s.False(ok)
}

func (s *HoardSuite) TestSetUpdates() {
	c := s.newCache(10)

	c.Set("a", 1)
	c.Set("a", 2)

	v, ok := c.Get("a")
	s.True(ok)
	s.Equal(2, v)
	s.Equal(1, c.Len())
}

func (s *HoardSuite) TestConstructionErrors() {
	_, err := New[string, int]()
	s.Require().ErrorIs(err, ErrNoCapacityBound)

	_, err = New[string, int](WithMaxEntries[string, int](0))
	s.Require().ErrorIs(err, ErrInvalidCapacity)

	_, err = New[string, int](WithMaxBytes[string, int](-1))
	s.Require().ErrorIs(err, ErrInvalidCapacity)

	s.Panics(func() { MustNew[string, int]() })
}

func (s *HoardSuite) TestDeleteIdempotent() {
	c := s.newCache(10)

	c.Set("a", 1)
	c.Set("b", 2)

	s.True(c.Delete("a"))
	s.False(c.Delete("a"))

	// the other key is untouched
	v, ok := c.Get("b")
	s.True(ok)
	s.Equal(2, v)
}

func (s *HoardSuite) TestHas() {
	c := s.newCache(10)

	s.False(c.Has("a"))

	c.Set("a", 1)

	s.True(c.Has("a"))
}

func (s *HoardSuite) TestHasDoesNotTouchStatsOrRecency() {
	c := s.newCache(2)

	c.Set("a", 1)
	c.Set("b", 2)

	// Has must not refresh recency: a stays oldest and is evicted.
	s.True(c.Has("a"))
	c.Set("c", 3)

	s.False(c.Has("a"))
	s.True(c.Has("b"))
	s.True(c.Has("c"))

	snap := c.Stats()
	s.Zero(snap.Hits)
	s.Zero(snap.Misses)
}

func (s *HoardSuite) TestClearKeepsStats() {
	c := s.newCache(10)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("nope")

	c.Clear()

	s.Equal(0, c.Len())
	s.Zero(c.UsedBytes())
	s.False(c.Has("a"))

	snap := c.Stats()
	s.Equal(int64(1), snap.Hits)
	s.Equal(int64(1), snap.Misses)

	c.ResetStats()
	snap = c.Stats()
	s.Zero(snap.Hits)
	s.Zero(snap.Misses)
}

func (s *HoardSuite) TestDefaultTTL() {
	c := s.newCache(10, WithDefaultTTL[string, int](time.Minute))

	c.Set("a", 1)

	v, ok := c.Get("a")
	s.True(ok)
	s.Equal(1, v)

	s.clk.Advance(2 * time.Minute)

	_, ok = c.Get("a")
	s.False(ok)
	s.Equal(0, c.Len())
}

func (s *HoardSuite) TestTTLBoundary() {
	c := s.newCache(10, WithDefaultTTL[string, int](time.Minute))

	c.Set("a", 1)
	c.Set("b", 2)

	// one instant before expiry the entries are live
	s.clk.Advance(time.Minute - time.Nanosecond)
	v, ok := c.Get("a")
	s.True(ok)
	s.Equal(1, v)

	// at exactly the expiry instant they are absent
	s.clk.Advance(time.Nanosecond)
	_, ok = c.Get("a")
	s.False(ok)
	s.False(c.Has("b"))
	s.Equal(0, c.Len())
}

func (s *HoardSuite) TestPerCallTTL() {
	c := s.newCache(10, WithDefaultTTL[string, int](time.Hour))

	c.Set("a", 1, TTL(time.Second))

	s.clk.Advance(2 * time.Second)

	_, ok := c.Get("a")
	s.False(ok)
}

func (s *HoardSuite) TestZeroTTLStoresNothing() {
	c := s.newCache(10)

	var sets, misses int
	c.Subscribe(EventSet, func(Event[string, int]) { sets++ })
	c.Subscribe(EventMiss, func(Event[string, int]) { misses++ })

	s.Require().NoError(c.Set("k", 1, TTL(0)))

	_, ok := c.Get("k")
	s.False(ok)
	s.Equal(0, c.Len())
	s.Zero(c.UsedBytes())
	s.Equal(1, sets)
	s.Equal(1, misses)
}

func (s *HoardSuite) TestZeroTTLReplacesExistingEntry() {
	c := s.newCache(10)

	c.Set("k", 1)
	c.Set("k", 2, TTL(0))

	_, ok := c.Get("k")
	s.False(ok)
	s.Equal(0, c.Len())
}

func (s *HoardSuite) TestHasRemovesExpired() {
	c := s.newCache(10, WithDefaultTTL[string, int](time.Minute))

	c.Set("a", 1)
	s.clk.Advance(2 * time.Minute)

	s.False(c.Has("a"))
	s.Equal(0, c.Len())

	snap := c.Stats()
	s.Equal(int64(1), snap.Expirations)
	s.Zero(snap.Misses)
}

func (s *HoardSuite) TestLRUEviction() {
	c := s.newCache(2)

	c.Set("a", 1)
	c.Set("b", 2)

	// access a to make it recently used
	c.Get("a")

	// add c, should evict b (least recently used)
	c.Set("c", 3)

	s.True(c.Has("a"), "a should still exist")
	s.False(c.Has("b"), "b should be evicted")
	s.True(c.Has("c"), "c should exist")

	v, ok := c.Get("a")
	s.True(ok)
	s.Equal(1, v)
	v, ok = c.Get("c")
	s.True(ok)
	s.Equal(3, v)
}

func (s *HoardSuite) TestCapacityInvariant() {
	c := s.newCache(3)

	keys := []string{"a", "b", "c", "d", "e", "f"}
	for i, k := range keys {
		c.Set(k, i)
		s.LessOrEqual(c.Len(), 3)
	}
}

func (s *HoardSuite) TestByteCapacityEviction() {
	c := MustNew[string, string](
		WithMaxBytes[string, string](10),
		WithSizeFunc[string, string](func(v string) int64 { return int64(len(v)) }),
		WithClock[string, string](s.clk),
	)

	c.Set("a", "12345") // 5 bytes
	c.Set("b", "12345") // 5 bytes, total 10

	s.Equal(2, c.Len())
	s.Equal(int64(10), c.UsedBytes())

	c.Set("c", "123") // evicts a (oldest) to make room

	s.False(c.Has("a"))
	s.True(c.Has("b"))
	s.True(c.Has("c"))
	s.Equal(int64(8), c.UsedBytes())
}

func (s *HoardSuite) TestValueLargerThanByteCapacityIsSkipped() {
	c := MustNew[string, string](
		WithMaxBytes[string, string](4),
		WithSizeFunc[string, string](func(v string) int64 { return int64(len(v)) }),
	)

	c.Set("a", "123")
	s.Require().NoError(c.Set("big", "1234567890"))

	// the oversized write is absorbed and existing entries survive
	s.False(c.Has("big"))
	s.True(c.Has("a"))
	s.Equal(int64(3), c.UsedBytes())
}

func (s *HoardSuite) TestMaxEntrySize() {
	c := MustNew[string, string](
		WithMaxEntries[string, string](10),
		WithMaxEntrySize[string, string](4),
		WithSizeFunc[string, string](func(v string) int64 { return int64(len(v)) }),
	)

	s.Require().NoError(c.Set("a", "123"))

	err := c.Set("b", "12345")
	var tooLarge *EntryTooLargeError
	s.Require().ErrorAs(err, &tooLarge)
	s.Equal(int64(5), tooLarge.Size)
	s.Equal(int64(4), tooLarge.Max)

	// store unmodified
	s.False(c.Has("b"))
	s.True(c.Has("a"))
}

func (s *HoardSuite) TestReplaceUpdatesByteAccounting() {
	c := MustNew[string, string](
		WithMaxBytes[string, string](100),
		WithSizeFunc[string, string](func(v string) int64 { return int64(len(v)) }),
	)

	c.Set("a", "12345")
	s.Equal(int64(5), c.UsedBytes())

	c.Set("a", "12")
	s.Equal(int64(2), c.UsedBytes())

	c.Delete("a")
	s.Zero(c.UsedBytes())
}

func (s *HoardSuite) TestInvalidateTag() {
	c := s.newCache(10)

	c.Set("x", 1, Tags("s"))
	c.Set("y", 2, Tags("s"))
	c.Set("z", 3, Tags("other"))

	s.Equal(2, c.InvalidateTag("s"))

	_, ok := c.Get("x")
	s.False(ok)
	_, ok = c.Get("y")
	s.False(ok)
	s.True(c.Has("z"))

	s.Empty(c.KeysForTag("s"))
	s.Equal(0, c.InvalidateTag("s"))
	s.Equal(0, c.InvalidateTag("unknown"))
}

func (s *HoardSuite) TestResetReplacesTags() {
	c := s.newCache(10)

	c.Set("a", 1, Tags("old"))
	c.Set("a", 2, Tags("new"))

	s.Empty(c.KeysForTag("old"))
	s.Equal([]string{"a"}, c.KeysForTag("new"))

	// invalidating the old tag must not remove the entry
	s.Equal(0, c.InvalidateTag("old"))
	s.True(c.Has("a"))

	s.Equal(1, c.InvalidateTag("new"))
	s.False(c.Has("a"))
}

func (s *HoardSuite) TestEvictionDetachesTags() {
	c := s.newCache(2)

	c.Set("a", 1, Tags("t"))
	c.Set("b", 2, Tags("t"))
	c.Set("c", 3, Tags("t"))

	// a was evicted; only live keys remain indexed
	keys := c.KeysForTag("t")
	s.Len(keys, 2)
	s.NotContains(keys, "a")
}

func (s *HoardSuite) TestStatsAccuracy() {
	c := s.newCache(10)

	c.Set("a", 1)
	c.Set("b", 2)

	for i := 0; i < 3; i++ {
		c.Get("a")
	}
	for i := 0; i < 2; i++ {
		c.Get("nope")
	}

	snap := c.Stats()
	s.Equal(int64(3), snap.Hits)
	s.Equal(int64(2), snap.Misses)
	s.InDelta(0.6, snap.HitRate(), 1e-9)
	s.Equal(2, snap.Entries)
	s.Zero(snap.Evictions)
}

func (s *HoardSuite) TestEvictionCount() {
	c := s.newCache(1)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	s.Equal(int64(2), c.Stats().Evictions)
}

func (s *HoardSuite) TestKeysMRUOrder() {
	c := s.newCache(10)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a")

	s.Equal([]string{"a", "c", "b"}, c.Keys())
}

func (s *HoardSuite) TestGetOrLoad() {
	var loaded atomic.Int64
	c := MustNew[string, int](
		WithMaxEntries[string, int](10),
		WithLoader(func(_ context.Context, key string) (int, error) {
			loaded.Add(1)
			return len(key), nil
		}),
	)

	v, err := c.GetOrLoad(context.Background(), "abc")
	s.Require().NoError(err)
	s.Equal(3, v)
	s.Equal(int64(1), loaded.Load())

	// second call hits the cache
	v, err = c.GetOrLoad(context.Background(), "abc")
	s.Require().NoError(err)
	s.Equal(3, v)
	s.Equal(int64(1), loaded.Load())
}

func (s *HoardSuite) TestGetOrLoadError() {
	boom := errors.New("boom")
	c := MustNew[string, int](
		WithMaxEntries[string, int](10),
		WithLoader(func(context.Context, string) (int, error) {
			return 0, boom
		}),
	)

	_, err := c.GetOrLoad(context.Background(), "a")
	s.Require().ErrorIs(err, boom)
	s.False(c.Has("a"))
}

func (s *HoardSuite) TestGetOrLoadReturnsValueWhenCachingFails() {
	c := MustNew[string, string](
		WithMaxEntries[string, string](10),
		WithMaxEntrySize[string, string](4),
		WithSizeFunc[string, string](func(v string) int64 { return int64(len(v)) }),
		WithLogger[string, string](discardLogger()),
		WithLoader(func(context.Context, string) (string, error) {
			return "too large to cache", nil
		}),
	)

	// the loader succeeded; the storage failure is absorbed
	v, err := c.GetOrLoad(context.Background(), "k")
	s.Require().NoError(err)
	s.Equal("too large to cache", v)
	s.False(c.Has("k"))
}

func (s *HoardSuite) TestGetOrLoadWithoutLoader() {
	c := s.newCache(10)

	v, err := c.GetOrLoad(context.Background(), "missing")
	s.Require().NoError(err)
	s.Zero(v)
}

func (s *HoardSuite) TestGetOrLoadSingleFlight() {
	var loaded atomic.Int64
	release := make(chan struct{})
	c := MustNew[string, int](
		WithMaxEntries[string, int](10),
		WithLoader(func(context.Context, string) (int, error) {
			loaded.Add(1)
			<-release
			return 42, nil
		}),
	)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "k")
			s.NoError(err)
			results[i] = v
		}(i)
	}

	// let every goroutine reach the singleflight gate before releasing
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int64(1), loaded.Load())
	for _, v := range results {
		s.Equal(42, v)
	}
}

func (s *HoardSuite) TestConcurrentAccess() {
	c := s.newCache(100)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			keys := []string{"a", "b", "c", "d"}
			for i := 0; i < 500; i++ {
				k := keys[(g+i)%len(keys)]
				switch i % 4 {
				case 0:
					c.Set(k, i, Tags("t"))
				case 1:
					c.Get(k)
				case 2:
					c.Delete(k)
				default:
					c.InvalidateTag("t")
				}
			}
		}(g)
	}
	wg.Wait()

	// accounting still consistent
	s.LessOrEqual(c.Len(), 100)
	s.GreaterOrEqual(c.UsedBytes(), int64(0))
}

func (s *HoardSuite) TestAlerts() {
	c := s.newCache(10, WithThreshold[string, int](OpGet, time.Nanosecond))

	s.Empty(c.Alerts())

	c.Set("a", 1)
	for i := 0; i < 100; i++ {
		c.Get("a")
	}

	// allow for very fast machines where the average rounds to zero
	if alerts := c.Alerts(); len(alerts) > 0 {
		s.Equal(OpGet, alerts[0].Op)
		s.Equal(time.Nanosecond, alerts[0].Threshold)
		s.Greater(alerts[0].Average, alerts[0].Threshold)
	}
}
