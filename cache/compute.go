package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/cachekit/observe"
)

// backend is what the stampede guard needs from a variant.
type backend[K comparable, V any] interface {
	// lookup returns the live value; record controls hit/miss accounting.
	lookup(ctx context.Context, key K, record bool) (V, bool)
	Put(ctx context.Context, key K, value V)
}

// getOrCompute runs supplier at most once among concurrent callers of key.
//
// Callers that find no value join a single flight per key. The flight looks
// the key up again before running the supplier, so a caller arriving just
// after a completed flight reuses its cached value. The supplier runs with
// the leader's context stripped of cancellation: a caller giving up never
// cancels the computation others are waiting on.
func (c *core[K, V]) getOrCompute(ctx context.Context, b backend[K, V], key K, supplier Supplier[V]) (V, error) {
	var zero V
	if v, ok := b.lookup(ctx, key, true); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, waitErr(err)
	}

	fk := keyLabel(key)
	computeCtx := context.WithoutCancel(ctx)

	f := c.flights.start(key, func() (V, error) {
		if v, ok := b.lookup(computeCtx, key, false); ok {
			return v, nil
		}

		var v V
		err := c.cfg.Telemetry.Compute(computeCtx, c.meta, fk, func(ctx context.Context) error {
			var err error
			v, err = c.runSupplier(ctx, fk, supplier)
			return err
		})
		if err != nil {
			c.stats.computeErrors.Add(1)
			return zero, &ComputationError{Key: key, Err: err}
		}

		c.stats.computations.Add(1)
		b.Put(computeCtx, key, v)
		return v, nil
	})

	select {
	case <-f.done:
		if f.err != nil {
			return zero, f.err
		}
		return f.val, nil
	case <-ctx.Done():
		return zero, waitErr(ctx.Err())
	}
}

func (c *core[K, V]) runSupplier(ctx context.Context, fk string, supplier Supplier[V]) (v V, err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error(ctx, "supplier panicked",
				observe.Field{Key: "key", Value: fk},
				observe.Field{Key: "panic", Value: fmt.Sprint(p)},
			)
			err = &panicError{value: p}
		}
	}()
	return supplier(ctx)
}

func waitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// keyLabel renders key for spans and logs. String keys are used verbatim;
// other types use their Go-syntax representation. Labels may collide and
// play no part in coordinating computations.
func keyLabel[K comparable](key K) string {
	if s, ok := any(key).(string); ok {
		return s
	}
	return fmt.Sprintf("%T/%#v", key, key)
}

// GetOrComputeTimeout is GetOrCompute with a wait limited to timeout.
// On expiry it returns ErrTimeout; the supplier keeps running and its result
// is still cached for later callers.
func GetOrComputeTimeout[K comparable, V any](ctx context.Context, c Cache[K, V], key K, timeout time.Duration, supplier Supplier[V]) (V, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.GetOrCompute(ctx, key, supplier)
}
