package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/cachekit/observe"
)

// removal is collected under a cache lock and reported after it is released.
type removal[K comparable, V any] struct {
	key    K
	value  V
	reason RemovalReason
}

// core holds what every variant shares: configuration, counters, telemetry
// and the in-flight computations.
type core[K comparable, V any] struct {
	cfg     Config[K, V]
	meta    observe.CacheMeta
	policy  Policy
	logger  observe.Logger
	stats   counters
	flights flightGroup[K, V]
	seq     atomic.Uint64
}

func newCore[K comparable, V any](kind string, cfg Config[K, V]) (*core[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults(kind)

	meta := observe.CacheMeta{Name: cfg.Name, Kind: kind}
	return &core[K, V]{
		cfg:    cfg,
		meta:   meta,
		policy: cfg.policy(),
		logger: cfg.Telemetry.Logger().WithCache(meta),
	}, nil
}

// Capacity returns the configured capacity; 0 means unbounded.
func (c *core[K, V]) Capacity() int {
	return c.cfg.Capacity
}

// Stats returns a snapshot of the cache counters.
func (c *core[K, V]) Stats() Stats {
	return c.stats.snapshot()
}

func (c *core[K, V]) now() time.Time {
	return c.cfg.Clock()
}

func (c *core[K, V]) nextSeq() uint64 {
	return c.seq.Add(1)
}

// full reports whether adding a new key to n stored entries needs room.
func (c *core[K, V]) full(n int) bool {
	return c.cfg.Capacity > 0 && n >= c.cfg.Capacity
}

func (c *core[K, V]) recordLookup(ctx context.Context, hit bool) {
	if hit {
		c.stats.hits.Add(1)
	} else {
		c.stats.misses.Add(1)
	}
	c.cfg.Telemetry.Metrics().RecordLookup(ctx, c.meta, hit)
}

// notify reports removals. Callers must not hold the cache lock.
func (c *core[K, V]) notify(ctx context.Context, removed []removal[K, V]) {
	if len(removed) == 0 {
		return
	}
	metrics := c.cfg.Telemetry.Metrics()
	for _, r := range removed {
		c.stats.removed(r.reason)
		metrics.RecordRemoval(ctx, c.meta, r.reason.String())
		if c.cfg.OnRemove != nil {
			c.callListener(ctx, r)
		}
	}
}

func (c *core[K, V]) callListener(ctx context.Context, r removal[K, V]) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error(ctx, "removal listener panicked",
				observe.Field{Key: "key", Value: fmt.Sprint(r.key)},
				observe.Field{Key: "reason", Value: r.reason.String()},
				observe.Field{Key: "panic", Value: fmt.Sprint(p)},
			)
		}
	}()
	c.cfg.OnRemove(r.key, r.value, r.reason)
}
