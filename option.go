package hoard

import (
	"context"
	"log/slog"
	"time"
)

type config[K comparable, V any] struct {
	maxEntries    int
	maxEntriesSet bool
	maxBytes      int64
	maxBytesSet   bool
	maxEntrySize  int64
	defaultTTL    time.Duration
	loader        func(context.Context, K) (V, error)
	estimator     Estimator[V]
	clock         Clock
	logger        *slog.Logger
	sweepEvery    time.Duration
	thresholds    map[Op]time.Duration
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		clock:      realClock{},
		logger:     slog.Default(),
		thresholds: make(map[Op]time.Duration),
	}
}

func (c *config[K, V]) validate() error {
	if !c.maxEntriesSet && !c.maxBytesSet {
		return ErrNoCapacityBound
	}
	if c.maxEntriesSet && c.maxEntries <= 0 {
		return ErrInvalidCapacity
	}
	if c.maxBytesSet && c.maxBytes <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Option configures a Cache.
type Option[K comparable, V any] func(*config[K, V])

// WithMaxEntries bounds the cache by entry count. At least one of
// WithMaxEntries and WithMaxBytes is required.
func WithMaxEntries[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		c.maxEntries = n
		c.maxEntriesSet = true
	}
}

// WithMaxBytes bounds the cache by total estimated bytes. At least one
// of WithMaxEntries and WithMaxBytes is required.
func WithMaxBytes[K comparable, V any](n int64) Option[K, V] {
	return func(c *config[K, V]) {
		c.maxBytes = n
		c.maxBytesSet = true
	}
}

// WithMaxEntrySize rejects single values whose estimated size exceeds n.
// Set returns an *EntryTooLargeError for such values and stores nothing.
func WithMaxEntrySize[K comparable, V any](n int64) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.maxEntrySize = n
		}
	}
}

// WithDefaultTTL sets the time-to-live applied to entries written
// without a per-call TTL. Zero means entries do not expire.
func WithDefaultTTL[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.defaultTTL = d
	}
}

// WithLoader sets a function used by GetOrLoad to compute missing
// values. Concurrent loads for the same key are deduplicated.
func WithLoader[K comparable, V any](fn func(context.Context, K) (V, error)) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = fn
	}
}

// WithEstimator replaces the default reflective size estimator.
func WithEstimator[K comparable, V any](e Estimator[V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.estimator = e
	}
}

// WithSizeFunc sets a size function for values, bypassing reflection.
func WithSizeFunc[K comparable, V any](fn func(V) int64) Option[K, V] {
	return func(c *config[K, V]) {
		c.estimator = funcEstimator[V](fn)
	}
}

// WithClock sets a custom clock for time operations.
// Useful for testing TTL behavior.
func WithClock[K comparable, V any](clk Clock) Option[K, V] {
	return func(c *config[K, V]) {
		c.clock = clk
	}
}

// WithLogger sets the logger used for absorbed anomalies (estimation
// fallbacks, handler panics, uncacheable values). Defaults to
// slog.Default().
func WithLogger[K comparable, V any](l *slog.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSweepInterval enables a background goroutine that removes expired
// entries every d. Expiry is otherwise discovered lazily on access; the
// sweep changes when dead entries are reclaimed, not any observable
// semantics. Call Close to stop the goroutine.
func WithSweepInterval[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

// WithThreshold sets an advisory latency threshold for an operation
// kind, surfaced through Alerts.
func WithThreshold[K comparable, V any](op Op, d time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.thresholds[op] = d
	}
}

type setOptions struct {
	ttl    time.Duration
	hasTTL bool
	tags   []string
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

// TTL overrides the default time-to-live for this write. A zero or
// negative duration means the value is already expired: the write is
// acknowledged but nothing is stored.
func TTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
		o.hasTTL = true
	}
}

// Tags attaches invalidation tags to this write. Re-setting a key
// replaces its previous tags entirely.
func Tags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = append(o.tags, tags...)
	}
}
