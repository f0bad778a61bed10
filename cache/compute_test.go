package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newComputeCaches(t *testing.T) map[string]Cache[string, int] {
	t.Helper()
	fifo, err := NewFIFO(Config[string, int]{Capacity: 64})
	if err != nil {
		t.Fatalf("NewFIFO() error = %v", err)
	}
	lru, err := NewLRU(Config[string, int]{Capacity: 64})
	if err != nil {
		t.Fatalf("NewLRU() error = %v", err)
	}
	timed, err := NewTimed(Config[string, int]{DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewTimed() error = %v", err)
	}
	return map[string]Cache[string, int]{"fifo": fifo, "lru": lru, "timed": timed}
}

func TestGetOrCompute_StampedeGuard(t *testing.T) {
	const (
		callers = 32
		delay   = 100 * time.Millisecond
	)
	for name, c := range newComputeCaches(t) {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			supplier := func(context.Context) (int, error) {
				calls.Add(1)
				time.Sleep(delay)
				return 42, nil
			}

			ctx := context.Background()
			start := time.Now()
			var wg sync.WaitGroup
			for range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					v, err := c.GetOrCompute(ctx, "slow", supplier)
					if err != nil || v != 42 {
						t.Errorf("GetOrCompute() = %d, %v; want 42, nil", v, err)
					}
				}()
			}
			wg.Wait()
			elapsed := time.Since(start)

			if elapsed >= 2*delay {
				t.Errorf("32 callers took %v, want < %v", elapsed, 2*delay)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("supplier calls = %d, want 1", got)
			}
			if got := c.Stats().Computations; got != 1 {
				t.Errorf("Stats().Computations = %d, want 1", got)
			}
		})
	}
}

func TestGetOrCompute_SequentialCallsComputeOnce(t *testing.T) {
	for name, c := range newComputeCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			supplier := func(context.Context) (int, error) {
				calls++
				return calls, nil
			}

			for range 2 {
				v, err := c.GetOrCompute(ctx, "k", supplier)
				if err != nil || v != 1 {
					t.Fatalf("GetOrCompute() = %d, %v; want 1, nil", v, err)
				}
			}
			if calls != 1 {
				t.Errorf("supplier calls = %d, want 1", calls)
			}
			if v, ok := c.Get(ctx, "k"); !ok || v != 1 {
				t.Errorf("computed value should be cached, got %d, %v", v, ok)
			}
		})
	}
}

func TestGetOrCompute_FailureSharedAndNotCached(t *testing.T) {
	c, err := NewLRU(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewLRU() error = %v", err)
	}
	ctx := context.Background()

	errBackend := errors.New("backend unavailable")
	release := make(chan struct{})
	var calls atomic.Int32
	failing := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, errBackend
	}

	const waiters = 8
	errs := make(chan error, waiters)
	var started sync.WaitGroup
	for range waiters {
		started.Add(1)
		go func() {
			started.Done()
			_, err := c.GetOrCompute(ctx, "k", failing)
			errs <- err
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)

	var first error
	for range waiters {
		err := <-errs
		if !errors.Is(err, ErrComputation) || !errors.Is(err, errBackend) {
			t.Errorf("error = %v, want ErrComputation wrapping the supplier error", err)
		}
		var ce *ComputationError
		if !errors.As(err, &ce) || ce.Key != "k" {
			t.Errorf("error = %#v, want *ComputationError for key k", err)
		}
		if first == nil {
			first = err
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("supplier calls = %d, want 1", got)
	}
	if c.ContainsKey(ctx, "k") {
		t.Error("a failed computation must not be cached")
	}
	if got := c.Stats().ComputeErrors; got != 1 {
		t.Errorf("Stats().ComputeErrors = %d, want 1", got)
	}

	v, err := c.GetOrCompute(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("retry after failure = %d, %v; want 7, nil", v, err)
	}
}

func TestGetOrCompute_SupplierPanicBecomesError(t *testing.T) {
	c, err := NewFIFO(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewFIFO() error = %v", err)
	}

	_, err = c.GetOrCompute(context.Background(), "k", func(context.Context) (int, error) {
		panic("boom")
	})
	if !errors.Is(err, ErrComputation) {
		t.Fatalf("error = %v, want ErrComputation", err)
	}
	if c.Len() != 0 {
		t.Error("panicking supplier must not cache a value")
	}
}

func TestGetOrComputeTimeout_SupplierKeepsRunning(t *testing.T) {
	c, err := NewTimed(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewTimed() error = %v", err)
	}
	ctx := context.Background()

	done := make(chan error, 1)
	supplier := func(ctx context.Context) (int, error) {
		time.Sleep(100 * time.Millisecond)
		done <- ctx.Err()
		return 9, nil
	}

	_, err = GetOrComputeTimeout(ctx, c, "k", 10*time.Millisecond, supplier)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("supplier context error = %v, want nil after caller timeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supplier did not finish")
	}

	deadline := time.Now().Add(time.Second)
	for !c.ContainsKey(ctx, "k") {
		if time.Now().After(deadline) {
			t.Fatal("result of the abandoned computation was not cached")
		}
		time.Sleep(time.Millisecond)
	}
	v, err := c.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
		t.Error("supplier should not run again")
		return 0, nil
	})
	if err != nil || v != 9 {
		t.Errorf("GetOrCompute() = %d, %v; want 9, nil", v, err)
	}
}

func TestGetOrCompute_CanceledContext(t *testing.T) {
	c, err := NewLRU(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewLRU() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err = c.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("supplier should not start for an already canceled caller")
	}

	c.Put(context.Background(), "hit", 1)
	if v, err := c.GetOrCompute(ctx, "hit", nil); err != nil || v != 1 {
		t.Errorf("cached value should be returned even with a canceled context, got %d, %v", v, err)
	}
}

func TestGetOrCompute_DistinctKeysDoNotBlock(t *testing.T) {
	c, err := NewLRU(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewLRU() error = %v", err)
	}
	ctx := context.Background()

	release := make(chan struct{})
	go func() {
		_, _ = c.GetOrCompute(ctx, "blocked", func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
	}()
	defer close(release)

	result := make(chan int, 1)
	go func() {
		v, _ := c.GetOrCompute(ctx, "free", func(context.Context) (int, error) { return 2, nil })
		result <- v
	}()

	select {
	case v := <-result:
		if v != 2 {
			t.Errorf("GetOrCompute(free) = %d, want 2", v)
		}
	case <-time.After(time.Second):
		t.Fatal("computation for another key blocked an unrelated key")
	}
}

func TestKeyLabel(t *testing.T) {
	tests := []struct {
		name string
		key  any
		want string
	}{
		{name: "string verbatim", key: "user:1", want: "user:1"},
		{name: "int", key: 7, want: "int/7"},
		{name: "struct", key: struct{ A int }{A: 1}, want: "struct { A int }/struct { A int }{A:1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyLabel(tt.key); got != tt.want {
				t.Errorf("keyLabel(%v) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetOrCompute_KeysWithEqualLabelsComputeSeparately(t *testing.T) {
	type point struct{ X int }
	p1, p2 := &point{X: 1}, &point{X: 1}

	tests := []struct {
		name string
		a, b any
	}{
		{name: "int and string", a: 1, b: "int/1"},
		{name: "distinct pointers", a: p1, b: p2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewLRU(Config[any, string]{})
			if err != nil {
				t.Fatalf("NewLRU() error = %v", err)
			}
			ctx := context.Background()

			release := make(chan struct{})
			slowDone := make(chan string, 1)
			go func() {
				v, _ := c.GetOrCompute(ctx, tt.a, func(context.Context) (string, error) {
					<-release
					return "for-a", nil
				})
				slowDone <- v
			}()

			// Wait until the first computation is running.
			deadline := time.Now().Add(time.Second)
			for c.flights.inFlight() == 0 {
				if time.Now().After(deadline) {
					t.Fatal("first computation never started")
				}
				time.Sleep(time.Millisecond)
			}

			got, err := c.GetOrCompute(ctx, tt.b, func(context.Context) (string, error) {
				return "for-b", nil
			})
			close(release)

			if err != nil || got != "for-b" {
				t.Errorf("GetOrCompute(b) = %q, %v, want for-b", got, err)
			}
			if v := <-slowDone; v != "for-a" {
				t.Errorf("GetOrCompute(a) = %q, want for-a", v)
			}
			if v, ok := c.Get(ctx, tt.b); !ok || v != "for-b" {
				t.Errorf("Get(b) = %q, %v, want for-b cached", v, ok)
			}
			if v, ok := c.Get(ctx, tt.a); !ok || v != "for-a" {
				t.Errorf("Get(a) = %q, %v, want for-a cached", v, ok)
			}
		})
	}
}

func TestGetOrCompute_ResultReplacesConcurrentPut(t *testing.T) {
	c, err := NewFIFO(Config[string, int]{})
	if err != nil {
		t.Fatalf("NewFIFO() error = %v", err)
	}
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)
	go func() {
		v, _ := c.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	c.Put(ctx, "k", 2)
	close(release)

	if v := <-done; v != 1 {
		t.Errorf("GetOrCompute() = %d, want 1", v)
	}
	if v, _ := c.Get(ctx, "k"); v != 1 {
		t.Errorf("Get() = %d, want the computed 1", v)
	}
}

func TestFlightGroup_ForgetsFinishedFlights(t *testing.T) {
	var g flightGroup[string, int]
	f := g.start("k", func() (int, error) { return 5, nil })
	<-f.done

	if f.val != 5 || f.err != nil {
		t.Errorf("flight = %d, %v, want 5, nil", f.val, f.err)
	}
	if n := g.inFlight(); n != 0 {
		t.Errorf("inFlight() = %d, want 0", n)
	}

	again := g.start("k", func() (int, error) { return 6, nil })
	<-again.done
	if again == f || again.val != 6 {
		t.Error("expected a new flight after the first finished")
	}
}
