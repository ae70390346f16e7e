package hoard

import "time"

type entry[V any] struct {
	value        V
	tags         []string
	size         int64
	accessCount  int64
	createdAt    time.Time
	lastAccessed time.Time
	expiresAt    time.Time // zero means no expiry
}

// isExpired reports whether the entry's TTL has elapsed. The boundary
// instant counts as expired: a read at exactly expiresAt finds nothing.
func (e *entry[V]) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
