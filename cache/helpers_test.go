package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type removed struct {
	key    string
	value  int
	reason RemovalReason
}

// recorder collects listener calls.
type recorder struct {
	mu     sync.Mutex
	events []removed
}

func (r *recorder) listen(key string, value int, reason RemovalReason) {
	r.mu.Lock()
	r.events = append(r.events, removed{key: key, value: value, reason: reason})
	r.mu.Unlock()
}

func (r *recorder) all() []removed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]removed, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(reason RemovalReason) int {
	n := 0
	for _, ev := range r.all() {
		if ev.reason == reason {
			n++
		}
	}
	return n
}

// collectKeys drains c.All into key order.
func collectKeys[V any](t *testing.T, c Cache[string, V]) []string {
	t.Helper()
	var keys []string
	for k := range c.All(t.Context()) {
		keys = append(keys, k)
	}
	return keys
}
