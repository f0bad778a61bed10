// Package cache provides generic, concurrency-safe in-memory caches.
//
// Four variants implement the Cache contract:
//
//   - FIFOCache evicts the earliest inserted key when full.
//   - LRUCache evicts the least recently used key when full.
//   - TimedCache expires entries by TTL, lazily on access and optionally
//     through a background sweep.
//   - WeakCache holds values through weak pointers so the garbage collector
//     may reclaim them.
//
// Every variant offers GetOrCompute, which guarantees at most one concurrent
// supplier invocation per missing key; other callers wait for and share its
// result. Removal listeners are called after the cache lock is released.
//
// Replacing an existing key never triggers eviction. In an LRUCache the
// replacement counts as an access; in a FIFOCache it keeps its position.
//
// Memoizer layers function memoization over any Cache[string, V], deriving
// keys from structured input with a Keyer.
package cache
