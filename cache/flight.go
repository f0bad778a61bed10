package cache

import "sync"

// flight is one in-progress computation and the callers waiting on it.
type flight[V any] struct {
	val  V
	err  error
	done chan struct{}
}

// flightGroup deduplicates computations per key. It is keyed by K itself:
// a string rendering of an arbitrary comparable key is not injective
// (pointer keys, interface keys holding different types), and two keys
// must never share a computation.
type flightGroup[K comparable, V any] struct {
	mu      sync.Mutex
	flights map[K]*flight[V]
}

// start returns the flight for key, running fn in a new goroutine when no
// flight is in progress. The flight is forgotten once fn returns, so a
// later call for key starts a new one.
func (g *flightGroup[K, V]) start(key K, fn func() (V, error)) *flight[V] {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		g.mu.Unlock()
		return f
	}
	if g.flights == nil {
		g.flights = make(map[K]*flight[V])
	}
	f := &flight[V]{done: make(chan struct{})}
	g.flights[key] = f
	g.mu.Unlock()

	go func() {
		f.val, f.err = fn()
		g.mu.Lock()
		delete(g.flights, key)
		g.mu.Unlock()
		close(f.done)
	}()
	return f
}

// inFlight reports how many computations are running.
func (g *flightGroup[K, V]) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.flights)
}
