package hoard

import "time"

// stats accumulates cache counters. All mutation happens under the
// cache lock, so plain fields suffice; Snapshot is the exported view.
type stats struct {
	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	getLatency runningMean
	setLatency runningMean
}

func (s *stats) hit()    { s.hits++ }
func (s *stats) miss()   { s.misses++ }
func (s *stats) evict()  { s.evictions++ }
func (s *stats) expire() { s.expirations++ }

func (s *stats) snapshot(entries int, usedBytes int64) Snapshot {
	return Snapshot{
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
		Expirations:   s.expirations,
		Entries:       entries,
		UsedBytes:     usedBytes,
		AvgGetLatency: s.getLatency.value(),
		AvgSetLatency: s.setLatency.value(),
	}
}

// runningMean maintains an incremental arithmetic mean in microseconds.
// No sample history is retained.
type runningMean struct {
	n   int64
	avg float64
}

func (m *runningMean) record(d time.Duration) {
	m.n++
	m.avg += (float64(d.Microseconds()) - m.avg) / float64(m.n)
}

func (m *runningMean) value() time.Duration {
	return time.Duration(m.avg * float64(time.Microsecond))
}

// Snapshot is a point-in-time copy of cache statistics.
type Snapshot struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Expirations   int64
	Entries       int
	UsedBytes     int64
	AvgGetLatency time.Duration
	AvgSetLatency time.Duration
}

// HitRate returns the cache hit rate as a value between 0 and 1.
// Returns 0 if there have been no accesses.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
