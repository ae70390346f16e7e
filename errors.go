package hoard

import (
	"errors"
	"fmt"
)

// ErrNoCapacityBound is returned by New when neither WithMaxEntries nor
// WithMaxBytes is configured. An unbounded cache is a memory leak with
// extra steps, so construction refuses it.
var ErrNoCapacityBound = errors.New("hoard: at least one of WithMaxEntries or WithMaxBytes must be set")

// ErrInvalidCapacity is returned by New when a configured bound is zero
// or negative.
var ErrInvalidCapacity = errors.New("hoard: capacity bounds must be positive")

// EntryTooLargeError is returned by Set when a single value's estimated
// size exceeds the limit configured with WithMaxEntrySize. The cache is
// left unmodified; the caller decides whether to proceed without caching.
type EntryTooLargeError struct {
	Size int64 // estimated size of the rejected value
	Max  int64 // configured per-entry limit
}

func (e *EntryTooLargeError) Error() string {
	return fmt.Sprintf("hoard: entry size %d exceeds per-entry limit %d", e.Size, e.Max)
}
