package cli

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cachekit/cache"
)

// Workload is a mix of reads, writes and computations spread over a fixed
// key space.
type Workload struct {
	Workers        int
	Ops            int
	Keys           int
	ComputeLatency time.Duration

	// GetPct and PutPct are the shares of Get and Put calls; the remainder
	// goes to GetOrCompute. Defaults: 50 and 20.
	GetPct int
	PutPct int
}

// Report summarises one workload run.
type Report struct {
	Ops           int64         `json:"ops"`
	Gets          int64         `json:"gets"`
	Puts          int64         `json:"puts"`
	Computes      int64         `json:"computes"`
	ComputeErrors int64         `json:"compute_errors"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	OpsPerSecond  float64       `json:"ops_per_second"`
}

func newWorkload(cfg Config) Workload {
	return Workload{
		Workers:        cfg.Workers,
		Ops:            cfg.Ops,
		Keys:           cfg.Keys,
		ComputeLatency: cfg.ComputeLatency,
	}
}

// Run spreads Ops operations over Workers goroutines. It stops early, and
// returns ctx.Err(), when ctx is done. Failed computations are counted,
// not returned.
func (w Workload) Run(ctx context.Context, c cache.Cache[string, *payload]) (Report, error) {
	if w.GetPct == 0 && w.PutPct == 0 {
		w.GetPct, w.PutPct = 50, 20
	}
	workers := max(w.Workers, 1)
	keys := max(w.Keys, 1)

	var (
		gets, puts, computes, failures atomic.Int64
		next                           atomic.Int64
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for next.Add(1) <= int64(w.Ops) {
				if err := gctx.Err(); err != nil {
					return err
				}
				key := "key-" + strconv.Itoa(rand.IntN(keys))
				switch op := rand.IntN(100); {
				case op < w.GetPct:
					c.Get(gctx, key)
					gets.Add(1)
				case op < w.GetPct+w.PutPct:
					c.Put(gctx, key, newPayload(key))
					puts.Add(1)
				default:
					_, err := c.GetOrCompute(gctx, key, w.supplier(key))
					computes.Add(1)
					if err != nil {
						if ctxErr := gctx.Err(); ctxErr != nil {
							return ctxErr
						}
						failures.Add(1)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	elapsed := time.Since(start)
	r := Report{
		Gets:          gets.Load(),
		Puts:          puts.Load(),
		Computes:      computes.Load(),
		ComputeErrors: failures.Load(),
		Elapsed:       elapsed,
	}
	r.Ops = r.Gets + r.Puts + r.Computes
	if elapsed > 0 {
		r.OpsPerSecond = float64(r.Ops) / elapsed.Seconds()
	}
	return r, err
}

// errFlaky is returned by roughly one supplier call in a hundred so failed
// computations show up in stats and health.
var errFlaky = errors.New("cachectl: simulated supplier failure")

func (w Workload) supplier(key string) cache.Supplier[*payload] {
	return func(ctx context.Context) (*payload, error) {
		if w.ComputeLatency > 0 {
			t := time.NewTimer(w.ComputeLatency)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		if rand.IntN(100) == 0 {
			return nil, errFlaky
		}
		return newPayload(key), nil
	}
}

func newPayload(key string) *payload {
	p := &payload{key: key}
	copy(p.data[:], key)
	return p
}
