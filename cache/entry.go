package cache

import (
	"sync/atomic"
	"time"
)

// Entry is a read-only copy of a cached entry.
type Entry[K comparable, V any] struct {
	Key            K
	Value          V
	CreatedAt      time.Time
	LastAccessedAt time.Time
	TTL            time.Duration // 0 means never expires
}

// entry is owned by exactly one cache. Only lastAccess may change after
// creation; replacing a key stores a new entry.
type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	ttl       time.Duration
	seq       uint64

	// lastAccess is unix nanoseconds, advanced by readers holding a shared lock.
	lastAccess atomic.Int64
}

func newEntry[K comparable, V any](key K, value V, ttl time.Duration, now time.Time, seq uint64) *entry[K, V] {
	e := &entry[K, V]{}
	e.init(key, value, ttl, now, seq)
	return e
}

func (e *entry[K, V]) init(key K, value V, ttl time.Duration, now time.Time, seq uint64) {
	e.key = key
	e.value = value
	e.createdAt = now
	e.ttl = ttl
	e.seq = seq
	e.lastAccess.Store(now.UnixNano())
}

// touch records a read at now. It never moves lastAccess backwards.
func (e *entry[K, V]) touch(now time.Time) {
	n := now.UnixNano()
	for {
		cur := e.lastAccess.Load()
		if n <= cur || e.lastAccess.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (e *entry[K, V]) lastAccessed() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// deadline returns when the entry expires, or the zero time if it never does.
func (e *entry[K, V]) deadline(sliding bool) time.Time {
	if e.ttl <= 0 {
		return time.Time{}
	}
	if sliding {
		return e.lastAccessed().Add(e.ttl)
	}
	return e.createdAt.Add(e.ttl)
}

func (e *entry[K, V]) expired(now time.Time, sliding bool) bool {
	d := e.deadline(sliding)
	return !d.IsZero() && !now.Before(d)
}

func (e *entry[K, V]) view() Entry[K, V] {
	return Entry[K, V]{
		Key:            e.key,
		Value:          e.value,
		CreatedAt:      e.createdAt,
		LastAccessedAt: e.lastAccessed(),
		TTL:            e.ttl,
	}
}
