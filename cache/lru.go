package cache

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LRUCache evicts the least recently used key when a new key arrives at
// capacity. Get and replacing Put both count as a use.
//
// Reads reorder the list, so every operation, Get included, takes the one
// exclusive lock; there is no shared read path that could observe a half
// relinked node, and no second lock to order against.
type LRUCache[K comparable, V any] struct {
	*core[K, V]

	mu       sync.Mutex
	order    *orderedmap.OrderedMap[K, *entry[K, V]] // least recently used first
	expiring int
}

// NewLRU creates an LRUCache. It returns an error wrapping ErrConfiguration
// for invalid configuration.
func NewLRU[K comparable, V any](cfg Config[K, V]) (*LRUCache[K, V], error) {
	base, err := newCore("lru", cfg)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{
		core:  base,
		order: orderedmap.New[K, *entry[K, V]](),
	}, nil
}

// Get returns the live value for key and marks it most recently used.
func (c *LRUCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	return c.lookup(ctx, key, true)
}

func (c *LRUCache[K, V]) lookup(ctx context.Context, key K, record bool) (V, bool) {
	var (
		zero    V
		removed []removal[K, V]
	)
	now := c.now()

	c.mu.Lock()
	e, ok := c.order.Get(key)
	if ok && e.expired(now, c.cfg.Sliding) {
		c.deleteLocked(key, e)
		removed = append(removed, removal[K, V]{key: key, value: e.value, reason: ReasonExpired})
		ok = false
	}
	if ok {
		e.touch(now)
		c.markUsedLocked(key)
	}
	c.mu.Unlock()

	c.notify(ctx, removed)
	if record {
		c.recordLookup(ctx, ok)
	}
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Peek returns a copy of the live entry for key without marking it used.
func (c *LRUCache[K, V]) Peek(key K) (Entry[K, V], bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.order.Get(key)
	if !ok || e.expired(now, c.cfg.Sliding) {
		return Entry[K, V]{}, false
	}
	return e.view(), true
}

// Put stores value with the default TTL.
func (c *LRUCache[K, V]) Put(ctx context.Context, key K, value V) {
	c.PutWithTTL(ctx, key, value, -1)
}

// PutWithTTL stores value with ttl and marks key most recently used.
// Only a new key at capacity evicts.
func (c *LRUCache[K, V]) PutWithTTL(ctx context.Context, key K, value V, ttl time.Duration) {
	ttl = c.policy.EffectiveTTL(ttl)
	now := c.now()
	var removed []removal[K, V]

	c.mu.Lock()
	old, exists := c.order.Get(key)
	if !exists && c.full(c.order.Len()) {
		removed = c.makeRoomLocked(now)
	}
	var seq uint64
	if exists {
		seq = old.seq
		if old.ttl > 0 {
			c.expiring--
		}
	} else {
		seq = c.nextSeq()
	}
	e := newEntry(key, value, ttl, now, seq)
	if e.ttl > 0 {
		c.expiring++
	}
	c.order.Set(key, e)
	c.markUsedLocked(key)
	c.mu.Unlock()

	c.notify(ctx, removed)
}

// markUsedLocked moves key to the most recently used end. Callers hold the
// lock and have just found or stored key, so a missing key means the order
// map is corrupt.
func (c *LRUCache[K, V]) markUsedLocked(key K) {
	if err := c.order.MoveToBack(key); err != nil {
		panic(fmt.Sprintf("cache: lru order lost key %v: %v", key, err))
	}
}

func (c *LRUCache[K, V]) deleteLocked(key K, e *entry[K, V]) bool {
	cur, ok := c.order.Get(key)
	if !ok || cur != e {
		return false
	}
	c.order.Delete(key)
	if e.ttl > 0 {
		c.expiring--
	}
	return true
}

// makeRoomLocked drops expired entries, then the least recently used if still full.
func (c *LRUCache[K, V]) makeRoomLocked(now time.Time) []removal[K, V] {
	removed := c.pruneLocked(now)
	if c.full(c.order.Len()) {
		if lru := c.order.Oldest(); lru != nil {
			e := lru.Value
			c.deleteLocked(e.key, e)
			removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonCapacity})
		}
	}
	return removed
}

func (c *LRUCache[K, V]) pruneLocked(now time.Time) []removal[K, V] {
	if c.expiring == 0 {
		return nil
	}
	var stale []*entry[K, V]
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.expired(now, c.cfg.Sliding) {
			stale = append(stale, pair.Value)
		}
	}
	removed := make([]removal[K, V], 0, len(stale))
	for _, e := range stale {
		if c.deleteLocked(e.key, e) {
			removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonExpired})
		}
	}
	return removed
}

// Remove deletes key and reports whether a live entry was removed.
func (c *LRUCache[K, V]) Remove(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.Lock()
	e, ok := c.order.Get(key)
	if ok {
		c.deleteLocked(key, e)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	if e.expired(now, c.cfg.Sliding) {
		c.notify(ctx, []removal[K, V]{{key: key, value: e.value, reason: ReasonExpired}})
		return false
	}
	c.notify(ctx, []removal[K, V]{{key: key, value: e.value, reason: ReasonExplicit}})
	return true
}

// ContainsKey reports whether key has a live entry. Recency is not affected.
func (c *LRUCache[K, V]) ContainsKey(ctx context.Context, key K) bool {
	now := c.now()
	var removed []removal[K, V]

	c.mu.Lock()
	e, ok := c.order.Get(key)
	if ok && e.expired(now, c.cfg.Sliding) {
		c.deleteLocked(key, e)
		removed = append(removed, removal[K, V]{key: key, value: e.value, reason: ReasonExpired})
		ok = false
	}
	c.mu.Unlock()

	c.notify(ctx, removed)
	return ok
}

// Len returns the number of stored entries.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// All yields live entries from least to most recently used. Iterating does
// not count as use.
func (c *LRUCache[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		now := c.now()

		c.mu.Lock()
		live := make([]*entry[K, V], 0, c.order.Len())
		var removed []removal[K, V]
		for pair := c.order.Oldest(); pair != nil; {
			e := pair.Value
			pair = pair.Next()
			if e.expired(now, c.cfg.Sliding) {
				c.deleteLocked(e.key, e)
				removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonExpired})
				continue
			}
			live = append(live, e)
		}
		c.mu.Unlock()

		c.notify(ctx, removed)
		for _, e := range live {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Keys returns the stored keys from least to most recently used.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// GetOrCompute returns the cached value for key or computes it once.
func (c *LRUCache[K, V]) GetOrCompute(ctx context.Context, key K, supplier Supplier[V]) (V, error) {
	return c.getOrCompute(ctx, c, key, supplier)
}

// Prune removes expired entries and returns how many were removed.
func (c *LRUCache[K, V]) Prune(ctx context.Context) int {
	c.mu.Lock()
	removed := c.pruneLocked(c.now())
	c.mu.Unlock()

	c.notify(ctx, removed)
	return len(removed)
}

// Clear removes every entry.
func (c *LRUCache[K, V]) Clear(ctx context.Context) {
	c.mu.Lock()
	removed := make([]removal[K, V], 0, c.order.Len())
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		removed = append(removed, removal[K, V]{key: pair.Key, value: pair.Value.value, reason: ReasonExplicit})
	}
	c.order = orderedmap.New[K, *entry[K, V]]()
	c.expiring = 0
	c.mu.Unlock()

	c.notify(ctx, removed)
}

var _ Cache[string, int] = (*LRUCache[string, int])(nil)
