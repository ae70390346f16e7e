package hoard

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Sizer reports its own byte footprint. Values implementing Sizer
// bypass the reflective estimator entirely, which is the precise and
// cheap option for types whose size the caller already knows.
type Sizer interface {
	SizeBytes() int64
}

// Estimator approximates the byte footprint of cached values.
// Implementations must not panic and must return a non-negative size.
type Estimator[V any] interface {
	Estimate(v V) int64
}

type funcEstimator[V any] func(V) int64

func (f funcEstimator[V]) Estimate(v V) int64 { return f(v) }

const (
	wordSize         = 8
	stringHeaderSize = 16
	sliceHeaderSize  = 24

	estimateMaxDepth = 8
	estimateMaxElems = 256
	fallbackEstimate = 512
)

// reflectEstimator walks values with reflect, bounded by a depth cap
// and a per-collection element cap. Shapes it cannot size (channels,
// funcs, structures deeper than the cap, including cycles) contribute a
// conservative fixed estimate instead. The first such value of each
// concrete type is logged; repeats are silent.
type reflectEstimator[V any] struct {
	logger *slog.Logger
	warned sync.Map // type name -> struct{}
}

func newReflectEstimator[V any](logger *slog.Logger) *reflectEstimator[V] {
	return &reflectEstimator[V]{logger: logger}
}

func (e *reflectEstimator[V]) Estimate(v V) int64 {
	if s, ok := any(v).(Sizer); ok {
		if n := s.SizeBytes(); n > 0 {
			return n
		}
		return wordSize
	}
	size, exact := sizeOf(reflect.ValueOf(v), 0)
	if !exact {
		e.warnOnce(v)
	}
	if size <= 0 {
		size = wordSize
	}
	return size
}

func (e *reflectEstimator[V]) warnOnce(v V) {
	name := fmt.Sprintf("%T", v)
	if _, seen := e.warned.LoadOrStore(name, struct{}{}); seen {
		return
	}
	e.logger.Warn("hoard: falling back to conservative size estimate", "type", name)
}

// sizeOf reports the approximate footprint of rv and whether the
// estimate is trustworthy. Recursion is bounded by estimateMaxDepth, so
// cyclic structures terminate with the fallback rather than looping.
func sizeOf(rv reflect.Value, depth int) (int64, bool) {
	if !rv.IsValid() {
		return wordSize, true
	}
	if depth > estimateMaxDepth {
		return fallbackEstimate, false
	}

	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return int64(rv.Type().Size()), true

	case reflect.String:
		return stringHeaderSize + int64(rv.Len()), true

	case reflect.Slice:
		if rv.IsNil() {
			return sliceHeaderSize, true
		}
		return sizeOfSeq(rv, depth, sliceHeaderSize)

	case reflect.Array:
		return sizeOfSeq(rv, depth, 0)

	case reflect.Map:
		if rv.IsNil() {
			return wordSize, true
		}
		total := int64(wordSize)
		exact := true
		n := 0
		iter := rv.MapRange()
		for iter.Next() {
			if n >= estimateMaxElems {
				exact = false
				break
			}
			ks, kok := sizeOf(iter.Key(), depth+1)
			vs, vok := sizeOf(iter.Value(), depth+1)
			total += ks + vs
			exact = exact && kok && vok
			n++
		}
		return total, exact

	case reflect.Pointer:
		if rv.IsNil() {
			return wordSize, true
		}
		inner, ok := sizeOf(rv.Elem(), depth+1)
		return wordSize + inner, ok

	case reflect.Interface:
		if rv.IsNil() {
			return stringHeaderSize, true
		}
		inner, ok := sizeOf(rv.Elem(), depth+1)
		return stringHeaderSize + inner, ok

	case reflect.Struct:
		var total int64
		exact := true
		for i := 0; i < rv.NumField(); i++ {
			fs, ok := sizeOf(rv.Field(i), depth+1)
			total += fs
			exact = exact && ok
		}
		return total, exact

	default:
		// Chan, Func, UnsafePointer: contents are not sizeable.
		return fallbackEstimate, false
	}
}

func sizeOfSeq(rv reflect.Value, depth int, header int64) (int64, bool) {
	total := header
	exact := true
	n := rv.Len()
	walk := n
	if walk > estimateMaxElems {
		walk = estimateMaxElems
		exact = false
	}
	for i := 0; i < walk; i++ {
		es, ok := sizeOf(rv.Index(i), depth+1)
		total += es
		exact = exact && ok
	}
	if walk < n && walk > 0 {
		// Extrapolate the unwalked tail from the sampled average.
		total += (total - header) / int64(walk) * int64(n-walk)
	}
	return total, exact
}
