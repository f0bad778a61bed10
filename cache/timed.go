package cache

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/cachekit/observe"
)

// TimedCache expires entries by TTL. Expired entries are removed lazily when
// accessed, and by a background sweep when one is running.
//
// Both paths remove an entry only while the key still maps to that exact
// entry, so a Put racing a sweep always wins and each removal is reported once.
type TimedCache[K comparable, V any] struct {
	*core[K, V]

	mu      sync.RWMutex
	entries map[K]*entry[K, V]

	sweepMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// NewTimed creates a TimedCache and starts the sweep if cfg.SweepInterval is
// set. It returns an error wrapping ErrConfiguration for invalid configuration.
func NewTimed[K comparable, V any](cfg Config[K, V]) (*TimedCache[K, V], error) {
	base, err := newCore("timed", cfg)
	if err != nil {
		return nil, err
	}
	c := &TimedCache[K, V]{
		core:    base,
		entries: make(map[K]*entry[K, V]),
	}
	if base.cfg.SweepInterval > 0 {
		if err := c.StartSweep(base.cfg.SweepInterval); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns the live value for key. An expired entry is removed before
// the miss is returned.
func (c *TimedCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	return c.lookup(ctx, key, true)
}

func (c *TimedCache[K, V]) lookup(ctx context.Context, key K, record bool) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	live := ok && !e.expired(now, c.cfg.Sliding)
	if live {
		e.touch(now)
	}
	c.mu.RUnlock()

	if ok && !live {
		c.expire(ctx, e)
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

// Peek returns a copy of the live entry for key without refreshing it.
func (c *TimedCache[K, V]) Peek(key K) (Entry[K, V], bool) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(now, c.cfg.Sliding) {
		return Entry[K, V]{}, false
	}
	return e.view(), true
}

// Put stores value with the default TTL.
func (c *TimedCache[K, V]) Put(ctx context.Context, key K, value V) {
	c.PutWithTTL(ctx, key, value, -1)
}

// PutWithTTL stores value with ttl. With a capacity set, a new key at
// capacity first prunes expired entries and then evicts the entry closest
// to expiry; entries that never expire go last.
func (c *TimedCache[K, V]) PutWithTTL(ctx context.Context, key K, value V, ttl time.Duration) {
	ttl = c.policy.EffectiveTTL(ttl)
	now := c.now()
	var removed []removal[K, V]

	c.mu.Lock()
	seq := uint64(0)
	if old, ok := c.entries[key]; ok {
		seq = old.seq
	} else {
		if c.full(len(c.entries)) {
			removed = c.makeRoomLocked(now)
		}
		seq = c.nextSeq()
	}
	c.entries[key] = newEntry(key, value, ttl, now, seq)
	c.mu.Unlock()

	c.notify(ctx, removed)
}

func (c *TimedCache[K, V]) deleteLocked(e *entry[K, V]) bool {
	if cur, ok := c.entries[e.key]; !ok || cur != e {
		return false
	}
	delete(c.entries, e.key)
	return true
}

func (c *TimedCache[K, V]) makeRoomLocked(now time.Time) []removal[K, V] {
	var removed []removal[K, V]
	for _, e := range c.entries {
		if e.expired(now, c.cfg.Sliding) {
			removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonExpired})
		}
	}
	for _, r := range removed {
		delete(c.entries, r.key)
	}
	if !c.full(len(c.entries)) {
		return removed
	}

	var victim *entry[K, V]
	for _, e := range c.entries {
		if victim == nil || c.expiresBefore(e, victim) {
			victim = e
		}
	}
	if victim != nil {
		delete(c.entries, victim.key)
		removed = append(removed, removal[K, V]{key: victim.key, value: victim.value, reason: ReasonCapacity})
	}
	return removed
}

// expiresBefore orders entries by deadline, never-expiring last, then by insertion.
func (c *TimedCache[K, V]) expiresBefore(a, b *entry[K, V]) bool {
	da, db := a.deadline(c.cfg.Sliding), b.deadline(c.cfg.Sliding)
	switch {
	case da.IsZero() && db.IsZero():
		return a.seq < b.seq
	case da.IsZero():
		return false
	case db.IsZero():
		return true
	case !da.Equal(db):
		return da.Before(db)
	default:
		return a.seq < b.seq
	}
}

// expire removes e unless the key has since been replaced or removed.
func (c *TimedCache[K, V]) expire(ctx context.Context, e *entry[K, V]) {
	c.mu.Lock()
	ok := c.deleteLocked(e)
	c.mu.Unlock()

	if ok {
		c.notify(ctx, []removal[K, V]{{key: e.key, value: e.value, reason: ReasonExpired}})
	}
}

// Remove deletes key and reports whether a live entry was removed.
func (c *TimedCache[K, V]) Remove(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
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

// ContainsKey reports whether key has a live entry without refreshing it.
func (c *TimedCache[K, V]) ContainsKey(ctx context.Context, key K) bool {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.expired(now, c.cfg.Sliding) {
		c.expire(ctx, e)
		return false
	}
	return ok
}

// Len returns the number of stored entries, including expired entries not
// yet removed.
func (c *TimedCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// All yields live entries in insertion order and removes expired ones it finds.
func (c *TimedCache[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		now := c.now()

		c.mu.RLock()
		live := make([]*entry[K, V], 0, len(c.entries))
		var stale []*entry[K, V]
		for _, e := range c.entries {
			if e.expired(now, c.cfg.Sliding) {
				stale = append(stale, e)
			} else {
				live = append(live, e)
			}
		}
		c.mu.RUnlock()

		for _, e := range stale {
			c.expire(ctx, e)
		}
		slices.SortFunc(live, func(a, b *entry[K, V]) int {
			return cmp.Compare(a.seq, b.seq)
		})
		for _, e := range live {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// GetOrCompute returns the cached value for key or computes it once. The
// computed value is stored with the default TTL.
func (c *TimedCache[K, V]) GetOrCompute(ctx context.Context, key K, supplier Supplier[V]) (V, error) {
	return c.getOrCompute(ctx, c, key, supplier)
}

// Prune removes expired entries and returns how many were removed.
// Candidates are collected under the read lock and re-checked under the
// write lock, so readers are only blocked for the deletions.
func (c *TimedCache[K, V]) Prune(ctx context.Context) int {
	now := c.now()

	c.mu.RLock()
	var stale []*entry[K, V]
	for _, e := range c.entries {
		if e.expired(now, c.cfg.Sliding) {
			stale = append(stale, e)
		}
	}
	c.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	removed := make([]removal[K, V], 0, len(stale))
	c.mu.Lock()
	for _, e := range stale {
		// A sliding entry may have been read since the scan.
		if e.expired(now, c.cfg.Sliding) && c.deleteLocked(e) {
			removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonExpired})
		}
	}
	c.mu.Unlock()

	c.notify(ctx, removed)
	return len(removed)
}

// Clear removes every entry.
func (c *TimedCache[K, V]) Clear(ctx context.Context) {
	c.mu.Lock()
	removed := make([]removal[K, V], 0, len(c.entries))
	for _, e := range c.entries {
		removed = append(removed, removal[K, V]{key: e.key, value: e.value, reason: ReasonExplicit})
	}
	c.entries = make(map[K]*entry[K, V])
	c.mu.Unlock()

	c.notify(ctx, removed)
}

// StartSweep runs Prune every interval on a goroutine owned by the cache,
// replacing any sweep already running.
func (c *TimedCache[K, V]) StartSweep(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: sweep interval must be positive, got %v", ErrConfiguration, interval)
	}

	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.stopSweepLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	go c.sweepLoop(ctx, interval, done)
	return nil
}

// StopSweep stops the background sweep and waits for it to exit. Lazy
// expiry keeps working. Must not be called from a removal listener.
func (c *TimedCache[K, V]) StopSweep() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	c.stopSweepLocked()
}

// Sweeping reports whether a background sweep is running.
func (c *TimedCache[K, V]) Sweeping() bool {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	return c.cancel != nil
}

func (c *TimedCache[K, V]) stopSweepLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

func (c *TimedCache[K, V]) sweepLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Prune(ctx); n > 0 {
				c.logger.Debug(ctx, "sweep removed expired entries",
					observe.Field{Key: "removed", Value: n},
				)
			}
		}
	}
}

// Close stops the sweep. The cache stays usable with lazy expiry only.
// Close is safe to call multiple times.
func (c *TimedCache[K, V]) Close() error {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	c.closed = true
	c.stopSweepLocked()
	return nil
}

var _ Cache[string, int] = (*TimedCache[string, int])(nil)
