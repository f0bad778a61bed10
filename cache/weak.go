package cache

import (
	"context"
	"iter"
	"runtime"
	"sync"
	"time"
	"weak"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// weakEntry holds its value through a weak pointer. cleanup removes the
// entry once the collector reclaims the referent.
type weakEntry[K comparable, T any] struct {
	entry[K, weak.Pointer[T]]
	cleanup runtime.Cleanup
}

// WeakCache holds values without keeping them alive. Once the caller drops
// every strong reference to a value the collector may reclaim it, after
// which the key reads as absent and is removed with ReasonCollected.
//
// Get returns a strong pointer; holding it keeps the value cached.
// Collection timing is up to the runtime and is not deterministic.
type WeakCache[K comparable, T any] struct {
	*core[K, *T]

	mu    sync.RWMutex
	order *orderedmap.OrderedMap[K, *weakEntry[K, T]] // oldest insertion first
}

// NewWeak creates a WeakCache. It returns an error wrapping ErrConfiguration
// for invalid configuration.
func NewWeak[K comparable, T any](cfg Config[K, *T]) (*WeakCache[K, T], error) {
	base, err := newCore("weak", cfg)
	if err != nil {
		return nil, err
	}
	return &WeakCache[K, T]{
		core:  base,
		order: orderedmap.New[K, *weakEntry[K, T]](),
	}, nil
}

// resolve returns the strong value of e if it is live, or the reason it is not.
func (c *WeakCache[K, T]) resolve(e *weakEntry[K, T], now time.Time) (*T, RemovalReason, bool) {
	p := e.value.Value()
	if p == nil {
		return nil, ReasonCollected, false
	}
	if e.expired(now, c.cfg.Sliding) {
		return p, ReasonExpired, false
	}
	return p, 0, true
}

// Get returns a strong pointer to the value for key if it is still live.
func (c *WeakCache[K, T]) Get(ctx context.Context, key K) (*T, bool) {
	return c.lookup(ctx, key, true)
}

func (c *WeakCache[K, T]) lookup(ctx context.Context, key K, record bool) (*T, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.order.Get(key)
	var (
		p      *T
		reason RemovalReason
		live   bool
	)
	if ok {
		p, reason, live = c.resolve(e, now)
		if live {
			e.touch(now)
		}
	}
	c.mu.RUnlock()

	if ok && !live {
		c.drop(ctx, e, p, reason)
	}
	if record {
		c.recordLookup(ctx, live)
	}
	if !live {
		return nil, false
	}
	return p, true
}

// Put stores value with the default TTL. A nil value is ignored.
func (c *WeakCache[K, T]) Put(ctx context.Context, key K, value *T) {
	c.PutWithTTL(ctx, key, value, -1)
}

// PutWithTTL stores a weak reference to value with ttl. A nil value is
// ignored. A new key at capacity first drops dead entries and then evicts
// the oldest insertion.
func (c *WeakCache[K, T]) PutWithTTL(ctx context.Context, key K, value *T, ttl time.Duration) {
	if value == nil {
		return
	}
	ttl = c.policy.EffectiveTTL(ttl)
	now := c.now()
	var removed []removal[K, *T]

	c.mu.Lock()
	e := &weakEntry[K, T]{}
	if old, ok := c.order.Get(key); ok {
		old.cleanup.Stop()
		e.init(key, weak.Make(value), ttl, now, old.seq)
	} else {
		if c.full(c.order.Len()) {
			removed = c.makeRoomLocked(now)
		}
		e.init(key, weak.Make(value), ttl, now, c.nextSeq())
	}
	e.cleanup = runtime.AddCleanup(value, c.collect, e)
	c.order.Set(key, e)
	c.mu.Unlock()

	c.notify(ctx, removed)
}

// collect runs on the runtime's cleanup goroutine after e's referent is reclaimed.
func (c *WeakCache[K, T]) collect(e *weakEntry[K, T]) {
	c.drop(context.Background(), e, nil, ReasonCollected)
}

// drop removes e unless the key has since been replaced or removed.
func (c *WeakCache[K, T]) drop(ctx context.Context, e *weakEntry[K, T], value *T, reason RemovalReason) {
	c.mu.Lock()
	ok := c.deleteLocked(e)
	c.mu.Unlock()

	if ok {
		c.notify(ctx, []removal[K, *T]{{key: e.key, value: value, reason: reason}})
	}
}

// deleteLocked removes e.key if it still maps to e. Caller holds mu.
func (c *WeakCache[K, T]) deleteLocked(e *weakEntry[K, T]) bool {
	cur, ok := c.order.Get(e.key)
	if !ok || cur != e {
		return false
	}
	c.order.Delete(e.key)
	e.cleanup.Stop()
	return true
}

func (c *WeakCache[K, T]) makeRoomLocked(now time.Time) []removal[K, *T] {
	removed := c.pruneLocked(now)
	if c.full(c.order.Len()) {
		if oldest := c.order.Oldest(); oldest != nil {
			e := oldest.Value
			c.deleteLocked(e)
			removed = append(removed, removal[K, *T]{key: e.key, value: e.value.Value(), reason: ReasonCapacity})
		}
	}
	return removed
}

func (c *WeakCache[K, T]) pruneLocked(now time.Time) []removal[K, *T] {
	var dead []removal[K, *T]
	var stale []*weakEntry[K, T]
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		if p, reason, live := c.resolve(pair.Value, now); !live {
			stale = append(stale, pair.Value)
			dead = append(dead, removal[K, *T]{key: pair.Key, value: p, reason: reason})
		}
	}
	for _, e := range stale {
		c.deleteLocked(e)
	}
	return dead
}

// Remove deletes key and reports whether a live entry was removed.
func (c *WeakCache[K, T]) Remove(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.Lock()
	e, ok := c.order.Get(key)
	if ok {
		c.deleteLocked(e)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	p, reason, live := c.resolve(e, now)
	if !live {
		c.notify(ctx, []removal[K, *T]{{key: key, value: p, reason: reason}})
		return false
	}
	c.notify(ctx, []removal[K, *T]{{key: key, value: p, reason: ReasonExplicit}})
	return true
}

// ContainsKey reports whether key has a live referent.
func (c *WeakCache[K, T]) ContainsKey(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.RLock()
	e, ok := c.order.Get(key)
	var (
		p      *T
		reason RemovalReason
		live   bool
	)
	if ok {
		p, reason, live = c.resolve(e, now)
	}
	c.mu.RUnlock()

	if ok && !live {
		c.drop(ctx, e, p, reason)
	}
	return live
}

// Len returns the number of entries whose referent is live right now.
func (c *WeakCache[K, T]) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		if _, _, live := c.resolve(pair.Value, now); live {
			n++
		}
	}
	return n
}

// All yields live entries in insertion order. The yielded pointers are strong.
func (c *WeakCache[K, T]) All(ctx context.Context) iter.Seq2[K, *T] {
	return func(yield func(K, *T) bool) {
		type item struct {
			key   K
			value *T
		}
		now := c.now()

		c.mu.RLock()
		live := make([]item, 0, c.order.Len())
		var stale []*weakEntry[K, T]
		for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
			if p, _, ok := c.resolve(pair.Value, now); ok {
				live = append(live, item{key: pair.Key, value: p})
			} else {
				stale = append(stale, pair.Value)
			}
		}
		c.mu.RUnlock()

		for _, e := range stale {
			p, reason, _ := c.resolve(e, now)
			c.drop(ctx, e, p, reason)
		}
		for _, it := range live {
			if !yield(it.key, it.value) {
				return
			}
		}
	}
}

// GetOrCompute returns the live value for key or computes it once. A nil
// result is returned to callers but not cached.
func (c *WeakCache[K, T]) GetOrCompute(ctx context.Context, key K, supplier Supplier[*T]) (*T, error) {
	return c.getOrCompute(ctx, c, key, supplier)
}

// Prune removes collected and expired entries and returns how many were removed.
func (c *WeakCache[K, T]) Prune(ctx context.Context) int {
	c.mu.Lock()
	removed := c.pruneLocked(c.now())
	c.mu.Unlock()

	c.notify(ctx, removed)
	return len(removed)
}

// Clear removes every entry. Listeners see nil for values already collected.
func (c *WeakCache[K, T]) Clear(ctx context.Context) {
	c.mu.Lock()
	removed := make([]removal[K, *T], 0, c.order.Len())
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.cleanup.Stop()
		removed = append(removed, removal[K, *T]{key: pair.Key, value: pair.Value.value.Value(), reason: ReasonExplicit})
	}
	c.order = orderedmap.New[K, *weakEntry[K, T]]()
	c.mu.Unlock()

	c.notify(ctx, removed)
}

var _ Cache[string, *int] = (*WeakCache[string, int])(nil)
