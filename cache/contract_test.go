package cache

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

type variant struct {
	name string
	make func(cfg Config[string, int]) (Cache[string, int], error)
}

// variants lists the value-holding caches. WeakCache is covered in weak_test.go.
var variants = []variant{
	{name: "fifo", make: func(cfg Config[string, int]) (Cache[string, int], error) { return NewFIFO(cfg) }},
	{name: "lru", make: func(cfg Config[string, int]) (Cache[string, int], error) { return NewLRU(cfg) }},
	{name: "timed", make: func(cfg Config[string, int]) (Cache[string, int], error) { return NewTimed(cfg) }},
}

func forEachVariant(t *testing.T, cfg Config[string, int], fn func(t *testing.T, c Cache[string, int])) {
	t.Helper()
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			c, err := v.make(cfg)
			if err != nil {
				t.Fatalf("constructor error = %v", err)
			}
			fn(t, c)
		})
	}
}

func TestContract_GetPut(t *testing.T) {
	forEachVariant(t, Config[string, int]{}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()

		if _, ok := c.Get(ctx, "missing"); ok {
			t.Error("Get on empty cache should miss")
		}
		c.Put(ctx, "k", 1)
		if v, ok := c.Get(ctx, "k"); !ok || v != 1 {
			t.Errorf("Get(k) = %d, %v; want 1, true", v, ok)
		}
		c.Put(ctx, "k", 2)
		if v, _ := c.Get(ctx, "k"); v != 2 {
			t.Errorf("Get(k) after replace = %d, want 2", v)
		}

		s := c.Stats()
		if s.Hits != 2 || s.Misses != 1 {
			t.Errorf("Stats() hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
		}
		if c.Capacity() != 0 {
			t.Errorf("Capacity() = %d, want 0", c.Capacity())
		}
	})
}

func TestContract_RemoveIsIdempotent(t *testing.T) {
	forEachVariant(t, Config[string, int]{}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()
		c.Put(ctx, "k", 1)

		if !c.Remove(ctx, "k") {
			t.Error("first Remove should return true")
		}
		if c.Remove(ctx, "k") {
			t.Error("second Remove should return false")
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
		if got := c.Stats().Removals; got != 1 {
			t.Errorf("Stats().Removals = %d, want 1", got)
		}
	})
}

func TestContract_ConcurrentRemoveNotifiesOnce(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			rec := &recorder{}
			c, err := v.make(Config[string, int]{OnRemove: rec.listen})
			if err != nil {
				t.Fatalf("constructor error = %v", err)
			}
			ctx := context.Background()

			for round := range 50 {
				c.Put(ctx, "k", round)

				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					wins int
				)
				for range 8 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if c.Remove(ctx, "k") {
							mu.Lock()
							wins++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()
				if wins != 1 {
					t.Fatalf("round %d: %d removers succeeded, want 1", round, wins)
				}
			}
			if got := rec.count(ReasonExplicit); got != 50 {
				t.Errorf("explicit notifications = %d, want 50", got)
			}
		})
	}
}

func TestContract_ExpiredEntriesAreAbsent(t *testing.T) {
	clock := newFakeClock()
	forEachVariant(t, Config[string, int]{DefaultTTL: time.Second, Clock: clock.Now}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()

		c.Put(ctx, "a", 1)
		c.Put(ctx, "b", 2)
		c.PutWithTTL(ctx, "c", 3, 0)
		clock.Advance(time.Second)

		if _, ok := c.Get(ctx, "a"); ok {
			t.Error("Get(a) should miss after expiry")
		}
		if c.ContainsKey(ctx, "b") {
			t.Error("ContainsKey(b) should be false after expiry")
		}
		if c.Remove(ctx, "b") {
			t.Error("Remove of an expired entry should return false")
		}
		if got := collectKeys(t, c); !slices.Equal(got, []string{"c"}) {
			t.Errorf("All() keys = %v, want [c]", got)
		}
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
	})
}

func TestContract_AllIsRestartableSnapshot(t *testing.T) {
	forEachVariant(t, Config[string, int]{}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()
		c.Put(ctx, "a", 1)
		c.Put(ctx, "b", 2)

		seq := c.All(ctx)
		var first []string
		for k := range seq {
			first = append(first, k)
			c.Put(ctx, "during", 0)
		}
		var second []string
		for k := range seq {
			second = append(second, k)
		}

		if !slices.Equal(first, []string{"a", "b"}) {
			t.Errorf("first pass = %v, want [a b]", first)
		}
		if len(second) != 3 {
			t.Errorf("second pass = %v, want a fresh snapshot with 3 keys", second)
		}

		n := 0
		for range c.All(ctx) {
			n++
			break
		}
		if n != 1 {
			t.Errorf("early break yielded %d, want 1", n)
		}
	})
}

func TestContract_PruneAndClear(t *testing.T) {
	clock := newFakeClock()
	forEachVariant(t, Config[string, int]{Clock: clock.Now}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()
		c.PutWithTTL(ctx, "short", 1, time.Second)
		c.Put(ctx, "a", 2)
		c.Put(ctx, "b", 3)
		clock.Advance(time.Minute)

		if got := c.Prune(ctx); got != 1 {
			t.Errorf("Prune() = %d, want 1", got)
		}
		c.Clear(ctx)
		if c.Len() != 0 {
			t.Errorf("Len() after Clear = %d, want 0", c.Len())
		}

		s := c.Stats()
		if s.Expirations != 1 || s.Removals != 2 {
			t.Errorf("Stats() expirations/removals = %d/%d, want 1/2", s.Expirations, s.Removals)
		}
	})
}

func TestContract_ListenerMayReenterCache(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			var c Cache[string, int]
			var seen []string
			cfg := Config[string, int]{
				Capacity: 1,
				OnRemove: func(key string, value int, reason RemovalReason) {
					seen = append(seen, key)
					c.ContainsKey(context.Background(), key)
					if key == "a" {
						c.Put(context.Background(), "graveyard:"+key, value)
					}
				},
			}
			var err error
			c, err = v.make(cfg)
			if err != nil {
				t.Fatalf("constructor error = %v", err)
			}
			ctx := context.Background()

			done := make(chan struct{})
			go func() {
				defer close(done)
				c.Put(ctx, "a", 1)
				c.Put(ctx, "b", 2)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("listener calling back into the cache deadlocked")
			}

			if len(seen) < 2 || seen[0] != "a" {
				t.Errorf("listener saw %v, want a evicted first", seen)
			}
		})
	}
}

func TestContract_ListenerPanicIsRecovered(t *testing.T) {
	forEachVariant(t, Config[string, int]{
		OnRemove: func(string, int, RemovalReason) { panic("listener bug") },
	}, func(t *testing.T, c Cache[string, int]) {
		ctx := context.Background()
		c.Put(ctx, "k", 1)

		if !c.Remove(ctx, "k") {
			t.Error("Remove should succeed despite the panicking listener")
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})
}
