package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

// sumFor returns the counter value for the data point carrying attr.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_LookupCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Name: "sessions", Kind: "lru"}
	ctx := context.Background()

	m.RecordLookup(ctx, meta, true)
	m.RecordLookup(ctx, meta, true)
	m.RecordLookup(ctx, meta, false)

	rm := collect(t, reader)
	name := attribute.String("cache.name", "sessions")
	if got := sumFor(t, rm, "cache.hits", name); got != 2 {
		t.Errorf("cache.hits = %d, want 2", got)
	}
	if got := sumFor(t, rm, "cache.misses", name); got != 1 {
		t.Errorf("cache.misses = %d, want 1", got)
	}
}

func TestMetrics_RemovalsByReason(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Kind: "fifo"}
	ctx := context.Background()

	m.RecordRemoval(ctx, meta, "capacity")
	m.RecordRemoval(ctx, meta, "capacity")
	m.RecordRemoval(ctx, meta, "expired")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "cache.removals", attribute.String("cache.reason", "capacity")); got != 2 {
		t.Errorf("capacity removals = %d, want 2", got)
	}
	if got := sumFor(t, rm, "cache.removals", attribute.String("cache.reason", "expired")); got != 1 {
		t.Errorf("expired removals = %d, want 1", got)
	}
	if got := sumFor(t, rm, "cache.removals", attribute.String("cache.name", "fifo")); got != 3 {
		t.Errorf("removals for cache.name=fifo = %d, want 3; name should default to kind", got)
	}
}

func TestMetrics_ComputationOutcomeAndDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Name: "users", Kind: "timed"}
	ctx := context.Background()

	m.RecordComputation(ctx, meta, 100*time.Millisecond, nil)
	m.RecordComputation(ctx, meta, 50*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumFor(t, rm, "cache.computations", attribute.String("cache.outcome", "success")); got != 1 {
		t.Errorf("successful computations = %d, want 1", got)
	}
	if got := sumFor(t, rm, "cache.computations", attribute.String("cache.outcome", "error")); got != 1 {
		t.Errorf("failed computations = %d, want 1", got)
	}

	found := findMetric(rm, "cache.compute.duration_ms")
	if found == nil {
		t.Fatal("cache.compute.duration_ms metric not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	var count uint64
	var sum float64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		sum += dp.Sum
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
	if sum < 149 || sum > 151 {
		t.Errorf("histogram sum = %v ms, want 150", sum)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Kind: "lru"}
	ctx := context.Background()

	done := make(chan struct{})
	for range 10 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 100 {
				m.RecordLookup(ctx, meta, true)
			}
		}()
	}
	for range 10 {
		<-done
	}

	rm := collect(t, reader)
	if got := sumFor(t, rm, "cache.hits", attribute.String("cache.kind", "lru")); got != 1000 {
		t.Errorf("cache.hits = %d, want 1000", got)
	}
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
