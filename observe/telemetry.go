package observe

import (
	"context"
	"time"
)

// Telemetry bundles the tracer, metrics and logger a cache reports to.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors passed to Compute's callback are recorded and returned unchanged.
//   - A nil *Telemetry behaves like Nop().
type Telemetry struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewTelemetry creates a Telemetry from its components. Nil components are
// replaced by no-op implementations.
func NewTelemetry(tracer Tracer, metrics Metrics, logger Logger) *Telemetry {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Telemetry{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Nop returns a Telemetry that records nothing.
func Nop() *Telemetry {
	return NewTelemetry(nil, nil, nil)
}

// TelemetryFromObserver creates a Telemetry from an Observer.
func TelemetryFromObserver(obs Observer) (*Telemetry, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewTelemetry(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the configured logger.
func (t *Telemetry) Logger() Logger {
	if t == nil {
		return NopLogger()
	}
	return t.logger
}

// Metrics returns the configured metrics recorder.
func (t *Telemetry) Metrics() Metrics {
	if t == nil {
		return noopMetrics{}
	}
	return t.metrics
}

// Tracer returns the configured tracer.
func (t *Telemetry) Tracer() Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return t.tracer
}

// Compute runs fn inside a cache.compute span, records its duration and
// outcome, and logs failures.
func (t *Telemetry) Compute(ctx context.Context, meta CacheMeta, key string, fn func(ctx context.Context) error) error {
	tracer := t.Tracer()
	ctx, span := tracer.StartSpan(ctx, meta, "compute", key)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	tracer.EndSpan(span, err)
	t.Metrics().RecordComputation(ctx, meta, duration, err)

	logger := t.Logger().WithCache(meta)
	fields := []Field{
		{Key: "key", Value: key},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Warn(ctx, "cache computation failed", fields...)
	} else {
		logger.Debug(ctx, "cache computation completed", fields...)
	}

	return err
}
