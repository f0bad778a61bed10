package cache

import (
	"context"
	"iter"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a derived string key.
const MaxKeyLength = 512

// Supplier computes a value for a missing key.
type Supplier[V any] func(ctx context.Context) (V, error)

// RemovalReason tells a Listener why an entry left the cache.
type RemovalReason int

const (
	// ReasonExplicit means Remove or Clear was called.
	ReasonExplicit RemovalReason = iota
	// ReasonCapacity means the entry was evicted to make room for a new key.
	ReasonCapacity
	// ReasonExpired means the entry outlived its TTL.
	ReasonExpired
	// ReasonCollected means the garbage collector reclaimed a weakly held value.
	ReasonCollected
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonCapacity:
		return "capacity"
	case ReasonExpired:
		return "expired"
	case ReasonCollected:
		return "collected"
	default:
		return "unknown"
	}
}

// Listener is notified once for every entry that leaves a cache.
// It runs on the goroutine that caused the removal, after the cache lock has
// been released, so it may call back into the cache.
type Listener[K comparable, V any] func(key K, value V, reason RemovalReason)

// Cache is the contract shared by every cache variant.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: only GetOrCompute fails; misses and expiry are reported as (zero, false).
// - Ownership: callers receive values, never the cache's internal entries.
type Cache[K comparable, V any] interface {
	// Get returns the live value for key. Returns (zero, false) on miss or expiry.
	Get(ctx context.Context, key K) (V, bool)

	// Put stores value with the cache default TTL.
	Put(ctx context.Context, key K, value V)

	// PutWithTTL stores value with ttl. ttl < 0 uses the cache default,
	// ttl == 0 never expires.
	PutWithTTL(ctx context.Context, key K, value V, ttl time.Duration)

	// Remove deletes key and reports whether a live entry was removed.
	Remove(ctx context.Context, key K) bool

	// ContainsKey reports whether key has a live entry. It does not count as
	// an access.
	ContainsKey(ctx context.Context, key K) bool

	// Len returns the number of stored entries.
	Len() int

	// Capacity returns the configured capacity; 0 means unbounded.
	Capacity() int

	// All returns a snapshot sequence of live entries. Each call takes a new snapshot.
	All(ctx context.Context) iter.Seq2[K, V]

	// GetOrCompute returns the cached value for key, or runs supplier once
	// among all concurrent callers and caches its result. The result is
	// stored with a plain Put when the supplier returns, replacing any value
	// put for key while the supplier was running.
	GetOrCompute(ctx context.Context, key K, supplier Supplier[V]) (V, error)

	// Prune removes expired or collected entries and returns how many were removed.
	Prune(ctx context.Context) int

	// Clear removes every entry.
	Clear(ctx context.Context)

	// Stats returns a snapshot of the cache counters.
	Stats() Stats
}

// ValidateKey checks if a derived string key is usable.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
