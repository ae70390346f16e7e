// Package prom exports hoard cache activity as Prometheus metrics.
//
// The collector is a plain event subscriber: the cache core knows
// nothing about metrics wire formats. Register it with a prometheus
// registry and it publishes hit/miss/evict/expire counters plus entry
// and byte gauges read from the cache's statistics snapshot.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/hoard"
)

// Collector bridges a hoard cache to Prometheus. It implements
// prometheus.Collector.
type Collector[K comparable, V any] struct {
	cache *hoard.Cache[K, V]
	subs  []hoard.Subscription

	hits        prometheus.Counter
	misses      prometheus.Counter
	evictions   prometheus.Counter
	expirations prometheus.Counter

	entries   *prometheus.Desc
	usedBytes *prometheus.Desc
}

// NewCollector subscribes to the cache's hit, miss, evict, and expire
// events and returns a collector ready for registration. The name
// appears as the "cache" label on every metric. Call Close to detach
// from the cache.
func NewCollector[K comparable, V any](name string, cache *hoard.Cache[K, V]) *Collector[K, V] {
	labels := prometheus.Labels{"cache": name}
	c := &Collector[K, V]{
		cache: cache,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hoard",
			Name:        "hits_total",
			Help:        "Number of cache hits.",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hoard",
			Name:        "misses_total",
			Help:        "Number of cache misses.",
			ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hoard",
			Name:        "evictions_total",
			Help:        "Number of entries removed by capacity pressure or tag invalidation.",
			ConstLabels: labels,
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "hoard",
			Name:        "expirations_total",
			Help:        "Number of entries removed after their TTL elapsed.",
			ConstLabels: labels,
		}),
		entries: prometheus.NewDesc(
			"hoard_entries",
			"Current number of live entries.",
			nil, labels,
		),
		usedBytes: prometheus.NewDesc(
			"hoard_used_bytes",
			"Summed size estimate of live entries.",
			nil, labels,
		),
	}

	c.subs = append(c.subs,
		cache.Subscribe(hoard.EventHit, func(hoard.Event[K, V]) { c.hits.Inc() }),
		cache.Subscribe(hoard.EventMiss, func(hoard.Event[K, V]) { c.misses.Inc() }),
		cache.Subscribe(hoard.EventEvict, func(hoard.Event[K, V]) { c.evictions.Inc() }),
		cache.Subscribe(hoard.EventExpire, func(hoard.Event[K, V]) { c.expirations.Inc() }),
	)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector[K, V]) Describe(ch chan<- *prometheus.Desc) {
	c.hits.Describe(ch)
	c.misses.Describe(ch)
	c.evictions.Describe(ch)
	c.expirations.Describe(ch)
	ch <- c.entries
	ch <- c.usedBytes
}

// Collect implements prometheus.Collector.
func (c *Collector[K, V]) Collect(ch chan<- prometheus.Metric) {
	c.hits.Collect(ch)
	c.misses.Collect(ch)
	c.evictions.Collect(ch)
	c.expirations.Collect(ch)

	snap := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(snap.Entries))
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(snap.UsedBytes))
}

// Close detaches the collector from the cache. The collector keeps
// reporting its last counter values if it stays registered.
func (c *Collector[K, V]) Close() {
	for _, sub := range c.subs {
		c.cache.Unsubscribe(sub)
	}
	c.subs = nil
}
