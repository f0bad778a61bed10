package cache

import (
	"context"
	"iter"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FIFOCache evicts the earliest inserted key when a new key arrives at
// capacity. Reads never reorder and replacing a key keeps its position.
type FIFOCache[K comparable, V any] struct {
	*core[K, V]

	mu    sync.RWMutex
	order *orderedmap.OrderedMap[K, *entry[K, V]] // oldest insertion first

	// expiring counts stored entries with a TTL; eviction skips the expiry
	// scan while it is zero.
	expiring int
}

// NewFIFO creates a FIFOCache. It returns an error wrapping ErrConfiguration
// for invalid configuration.
func NewFIFO[K comparable, V any](cfg Config[K, V]) (*FIFOCache[K, V], error) {
	base, err := newCore("fifo", cfg)
	if err != nil {
		return nil, err
	}
	return &FIFOCache[K, V]{
		core:  base,
		order: orderedmap.New[K, *entry[K, V]](),
	}, nil
}

// Get returns the live value for key. FIFO order is not affected.
func (c *FIFOCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	return c.lookup(ctx, key, true)
}

func (c *FIFOCache[K, V]) lookup(ctx context.Context, key K, record bool) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.order.Get(key)
	live := ok && !e.expired(now, c.cfg.Sliding)
	if live {
		e.touch(now)
	}
	c.mu.RUnlock()

	if ok && !live {
		c.expire(ctx, key, e)
	}
	if record {
		c.recordLookup(ctx, live)
	}
	if !live {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek returns a copy of the live entry for key without counting an access.
func (c *FIFOCache[K, V]) Peek(key K) (Entry[K, V], bool) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.order.Get(key)
	if !ok || e.expired(now, c.cfg.Sliding) {
		return Entry[K, V]{}, false
	}
	return e.view(), true
}

// Put stores value with the default TTL.
func (c *FIFOCache[K, V]) Put(ctx context.Context, key K, value V) {
	c.PutWithTTL(ctx, key, value, -1)
}

// PutWithTTL stores value with ttl. A new key at capacity evicts the oldest
// insertion; replacing a key never evicts and keeps its position.
func (c *FIFOCache[K, V]) PutWithTTL(ctx context.Context, key K, value V, ttl time.Duration) {
	ttl = c.policy.EffectiveTTL(ttl)
	now := c.now()
	var removed []removal[K, V]

	c.mu.Lock()
	if old, ok := c.order.Get(key); ok {
		c.storeLocked(key, newEntry(key, value, ttl, now, old.seq), old)
	} else {
		if c.full(c.order.Len()) {
			removed = c.makeRoomLocked(now)
		}
		c.storeLocked(key, newEntry(key, value, ttl, now, c.nextSeq()), nil)
	}
	c.mu.Unlock()

	c.notify(ctx, removed)
}

// storeLocked sets key without moving an existing key. Caller holds mu.
func (c *FIFOCache[K, V]) storeLocked(key K, e, old *entry[K, V]) {
	if old != nil && old.ttl > 0 {
		c.expiring--
	}
	if e.ttl > 0 {
		c.expiring++
	}
	c.order.Set(key, e)
}

// deleteLocked removes key if it still maps to e. Caller holds mu.
func (c *FIFOCache[K, V]) deleteLocked(key K, e *entry[K, V]) bool {
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

// makeRoomLocked drops expired entries, then the oldest insertion if still full.
func (c *FIFOCache[K, V]) makeRoomLocked(now time.Time) []removal[K, V] {
	removed := c.pruneLocked(now)
	if c.full(c.order.Len()) {
		if oldest := c.order.Oldest(); oldest != nil {
			e := oldest.Value
			c.deleteLocked(e.key, e)
			removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonCapacity})
		}
	}
	return removed
}

func (c *FIFOCache[K, V]) pruneLocked(now time.Time) []removal[K, V] {
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

// expire removes e lazily. A second remover of the same entry is a no-op.
func (c *FIFOCache[K, V]) expire(ctx context.Context, key K, e *entry[K, V]) {
	c.mu.Lock()
	ok := c.deleteLocked(key, e)
	c.mu.Unlock()

	if ok {
		c.notify(ctx, []removal[K, V]{{key: key, value: e.value, reason: ReasonExpired}})
	}
}

// Remove deletes key and reports whether a live entry was removed.
func (c *FIFOCache[K, V]) Remove(ctx context.Context, key K) bool {
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

// ContainsKey reports whether key has a live entry.
func (c *FIFOCache[K, V]) ContainsKey(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.RLock()
	e, ok := c.order.Get(key)
	c.mu.RUnlock()

	if ok && e.expired(now, c.cfg.Sliding) {
		c.expire(ctx, key, e)
		return false
	}
	return ok
}

// Len returns the number of stored entries.
func (c *FIFOCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// All yields live entries from oldest to newest insertion.
func (c *FIFOCache[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		now := c.now()

		c.mu.RLock()
		live := make([]*entry[K, V], 0, c.order.Len())
		var stale []*entry[K, V]
		for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Value.expired(now, c.cfg.Sliding) {
				stale = append(stale, pair.Value)
			} else {
				live = append(live, pair.Value)
			}
		}
		c.mu.RUnlock()

		for _, e := range stale {
			c.expire(ctx, e.key, e)
		}
		for _, e := range live {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Keys returns the stored keys from oldest to newest insertion.
func (c *FIFOCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, c.order.Len())
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// GetOrCompute returns the cached value for key or computes it once.
func (c *FIFOCache[K, V]) GetOrCompute(ctx context.Context, key K, supplier Supplier[V]) (V, error) {
	return c.getOrCompute(ctx, c, key, supplier)
}

// Prune removes expired entries and returns how many were removed.
func (c *FIFOCache[K, V]) Prune(ctx context.Context) int {
	c.mu.Lock()
	removed := c.pruneLocked(c.now())
	c.mu.Unlock()

	c.notify(ctx, removed)
	return len(removed)
}

// Clear removes every entry.
func (c *FIFOCache[K, V]) Clear(ctx context.Context) {
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

var _ Cache[string, int] = (*FIFOCache[string, int])(nil)
