package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func benchCaches(b *testing.B) map[string]Cache[string, int] {
	b.Helper()
	fifo, err := NewFIFO(Config[string, int]{Capacity: 1024})
	if err != nil {
		b.Fatal(err)
	}
	lru, err := NewLRU(Config[string, int]{Capacity: 1024})
	if err != nil {
		b.Fatal(err)
	}
	timed, err := NewTimed(Config[string, int]{Capacity: 1024, DefaultTTL: time.Hour})
	if err != nil {
		b.Fatal(err)
	}
	return map[string]Cache[string, int]{"fifo": fifo, "lru": lru, "timed": timed}
}

// BenchmarkGet_Hit measures the hit path of each variant.
func BenchmarkGet_Hit(b *testing.B) {
	for name, c := range benchCaches(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			c.Put(ctx, "key", 1)

			for b.Loop() {
				_, _ = c.Get(ctx, "key")
			}
		})
	}
}

// BenchmarkPut_Evicting measures writes of new keys at capacity.
func BenchmarkPut_Evicting(b *testing.B) {
	for name, c := range benchCaches(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			keys := make([]string, 4096)
			for i := range keys {
				keys[i] = "key-" + strconv.Itoa(i)
			}

			i := 0
			for b.Loop() {
				c.Put(ctx, keys[i%len(keys)], i)
				i++
			}
		})
	}
}

// BenchmarkGet_Parallel measures contended reads.
func BenchmarkGet_Parallel(b *testing.B) {
	for name, c := range benchCaches(b) {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			for i := range 256 {
				c.Put(ctx, "key-"+strconv.Itoa(i), i)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					_, _ = c.Get(ctx, "key-"+strconv.Itoa(i%256))
					i++
				}
			})
		})
	}
}

// BenchmarkGetOrCompute_Hit measures the stampede guard fast path.
func BenchmarkGetOrCompute_Hit(b *testing.B) {
	c, err := NewLRU(Config[string, int]{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	supplier := func(context.Context) (int, error) { return 1, nil }
	_, _ = c.GetOrCompute(ctx, "key", supplier)

	for b.Loop() {
		_, _ = c.GetOrCompute(ctx, "key", supplier)
	}
}

// BenchmarkHashKeyer measures key derivation.
func BenchmarkHashKeyer(b *testing.B) {
	keyer := NewHashKeyer()
	input := map[string]any{"query": "golang", "page": 2, "filters": []any{"a", "b"}}

	for b.Loop() {
		_, _ = keyer.Key("search", input)
	}
}
