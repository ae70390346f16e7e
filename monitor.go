package hoard

import "time"

// Op identifies a cache operation kind for latency monitoring.
type Op string

const (
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpDelete     Op = "delete"
	OpInvalidate Op = "invalidate"
)

// Alert reports an operation kind whose recent average latency exceeds
// its configured threshold. Alerts are advisory; the cache never slows
// or fails an operation because of one.
type Alert struct {
	Op        Op
	Average   time.Duration
	Threshold time.Duration
}

// monitor keeps an exponentially-weighted moving average of operation
// latency per kind. Mutated only under the cache lock.
type monitor struct {
	alpha      float64
	avgs       map[Op]float64 // microseconds
	thresholds map[Op]time.Duration
}

func newMonitor(thresholds map[Op]time.Duration) *monitor {
	return &monitor{
		alpha:      0.2,
		avgs:       make(map[Op]float64),
		thresholds: thresholds,
	}
}

func (m *monitor) record(op Op, d time.Duration) {
	x := float64(d.Microseconds())
	cur, ok := m.avgs[op]
	if !ok {
		m.avgs[op] = x
		return
	}
	m.avgs[op] = cur + m.alpha*(x-cur)
}

func (m *monitor) average(op Op) time.Duration {
	return time.Duration(m.avgs[op] * float64(time.Microsecond))
}

func (m *monitor) checkThresholds() []Alert {
	var alerts []Alert
	for op, limit := range m.thresholds {
		if _, ok := m.avgs[op]; !ok {
			continue
		}
		if avg := m.average(op); avg > limit {
			alerts = append(alerts, Alert{Op: op, Average: avg, Threshold: limit})
		}
	}
	return alerts
}
