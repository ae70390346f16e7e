package hoard

import "log/slog"

// EventKind identifies a cache lifecycle event.
type EventKind int

const (
	EventSet EventKind = iota
	EventHit
	EventMiss
	EventDelete
	EventEvict
	EventExpire
	EventClear
	EventInvalidate
)

func (k EventKind) String() string {
	switch k {
	case EventSet:
		return "set"
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventDelete:
		return "delete"
	case EventEvict:
		return "evict"
	case EventExpire:
		return "expire"
	case EventClear:
		return "clear"
	case EventInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// EvictReason distinguishes why an entry was evicted.
type EvictReason int

const (
	// ReasonCapacity marks eviction under count or byte pressure.
	ReasonCapacity EvictReason = iota
	// ReasonTag marks removal through InvalidateTag.
	ReasonTag
)

func (r EvictReason) String() string {
	if r == ReasonTag {
		return "tag"
	}
	return "capacity"
}

// Event is implemented by all cache lifecycle events. Handlers switch
// on the concrete type to reach the payload for a given kind.
type Event[K comparable, V any] interface {
	Kind() EventKind
}

// SetEvent is emitted after a write commits (or, for an already-expired
// TTL, after the write is acknowledged without storage).
type SetEvent[K comparable, V any] struct {
	Key   K
	Value V
	Size  int64
	Tags  []string
}

func (SetEvent[K, V]) Kind() EventKind { return EventSet }

// HitEvent is emitted when Get finds a live entry.
type HitEvent[K comparable, V any] struct {
	Key   K
	Value V
}

func (HitEvent[K, V]) Kind() EventKind { return EventHit }

// MissEvent is emitted when Get finds nothing, including the miss that
// follows a lazy expiry.
type MissEvent[K comparable] struct {
	Key K
}

func (MissEvent[K]) Kind() EventKind { return EventMiss }

// DeleteEvent is emitted when Delete removes an entry.
type DeleteEvent[K comparable, V any] struct {
	Key   K
	Value V
}

func (DeleteEvent[K, V]) Kind() EventKind { return EventDelete }

// EvictEvent is emitted once per entry removed by capacity pressure or
// tag invalidation.
type EvictEvent[K comparable, V any] struct {
	Key    K
	Value  V
	Reason EvictReason
}

func (EvictEvent[K, V]) Kind() EventKind { return EventEvict }

// ExpireEvent is emitted when an expired entry is discovered and
// removed, whether lazily on access or by the background sweep.
type ExpireEvent[K comparable, V any] struct {
	Key   K
	Value V
}

func (ExpireEvent[K, V]) Kind() EventKind { return EventExpire }

// ClearEvent is emitted once per Clear with the number of entries that
// were removed.
type ClearEvent struct {
	Entries int
}

func (ClearEvent) Kind() EventKind { return EventClear }

// InvalidateEvent is the aggregate emitted by InvalidateTag, after the
// per-entry evict events.
type InvalidateEvent struct {
	Tag     string
	Removed int
}

func (InvalidateEvent) Kind() EventKind { return EventInvalidate }

// Handler receives cache events. Handlers run synchronously while the
// cache lock is held; they must not call back into the same cache or
// they will deadlock.
type Handler[K comparable, V any] func(Event[K, V])

// Subscription identifies a registered handler for later removal.
type Subscription struct {
	kind EventKind
	id   int
}

type listener[K comparable, V any] struct {
	id int
	fn Handler[K, V]
}

// emitter dispatches events to subscribers of the matching kind, in
// registration order. A panicking handler is recovered and logged; it
// never stops later handlers or the operation that emitted the event.
type emitter[K comparable, V any] struct {
	logger *slog.Logger
	nextID int
	byKind map[EventKind][]listener[K, V]
}

func newEmitter[K comparable, V any](logger *slog.Logger) *emitter[K, V] {
	return &emitter[K, V]{
		logger: logger,
		byKind: make(map[EventKind][]listener[K, V]),
	}
}

func (e *emitter[K, V]) on(kind EventKind, fn Handler[K, V]) Subscription {
	e.nextID++
	id := e.nextID
	e.byKind[kind] = append(e.byKind[kind], listener[K, V]{id: id, fn: fn})
	return Subscription{kind: kind, id: id}
}

func (e *emitter[K, V]) off(sub Subscription) bool {
	ls := e.byKind[sub.kind]
	for i, l := range ls {
		if l.id == sub.id {
			e.byKind[sub.kind] = append(ls[:i:i], ls[i+1:]...)
			return true
		}
	}
	return false
}

func (e *emitter[K, V]) emit(ev Event[K, V]) {
	for _, l := range e.byKind[ev.Kind()] {
		e.dispatch(l, ev)
	}
}

func (e *emitter[K, V]) dispatch(l listener[K, V], ev Event[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("hoard: event handler panicked",
				"event", ev.Kind().String(),
				"handler", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(ev)
}
