package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording never blocks on export.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records a Get hit or miss.
	RecordLookup(ctx context.Context, meta CacheMeta, hit bool)

	// RecordRemoval records an entry leaving the cache for reason.
	RecordRemoval(ctx context.Context, meta CacheMeta, reason string)

	// RecordComputation records one supplier invocation.
	RecordComputation(ctx context.Context, meta CacheMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	removals     metric.Int64Counter
	computations metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	hits, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Number of lookups that found a live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Number of lookups that found no live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	removals, err := meter.Int64Counter(
		"cache.removals",
		metric.WithDescription("Number of entries removed, by reason"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	computations, err := meter.Int64Counter(
		"cache.computations",
		metric.WithDescription("Number of get-or-compute supplier invocations, by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.compute.duration_ms",
		metric.WithDescription("Supplier duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		hits:         hits,
		misses:       misses,
		removals:     removals,
		computations: computations,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta CacheMeta, hit bool) {
	opt := metric.WithAttributes(meta.attributes()...)
	if hit {
		m.hits.Add(ctx, 1, opt)
		return
	}
	m.misses.Add(ctx, 1, opt)
}

func (m *metricsImpl) RecordRemoval(ctx context.Context, meta CacheMeta, reason string) {
	attrs := append(meta.attributes(), attribute.String("cache.reason", reason))
	m.removals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordComputation(ctx context.Context, meta CacheMeta, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := append(meta.attributes(), attribute.String("cache.outcome", outcome))
	opt := metric.WithAttributes(attrs...)

	m.computations.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(ctx context.Context, meta CacheMeta, hit bool)       {}
func (noopMetrics) RecordRemoval(ctx context.Context, meta CacheMeta, reason string) {}
func (noopMetrics) RecordComputation(ctx context.Context, meta CacheMeta, duration time.Duration, err error) {
}
