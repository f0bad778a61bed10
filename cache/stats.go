package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64 // removed for capacity
	Expirations   uint64
	Collections   uint64 // weak values reclaimed by the garbage collector
	Removals      uint64 // explicit Remove and Clear
	Computations  uint64 // successful suppliers
	ComputeErrors uint64
}

// Lookups returns the number of Get calls counted.
func (s Stats) Lookups() uint64 {
	return s.Hits + s.Misses
}

// HitRatio returns Hits/Lookups, or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Lookups()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	expirations   atomic.Uint64
	collections   atomic.Uint64
	removals      atomic.Uint64
	computations  atomic.Uint64
	computeErrors atomic.Uint64
}

func (c *counters) removed(reason RemovalReason) {
	switch reason {
	case ReasonCapacity:
		c.evictions.Add(1)
	case ReasonExpired:
		c.expirations.Add(1)
	case ReasonCollected:
		c.collections.Add(1)
	default:
		c.removals.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Expirations:   c.expirations.Load(),
		Collections:   c.collections.Load(),
		Removals:      c.removals.Load(),
		Computations:  c.computations.Load(),
		ComputeErrors: c.computeErrors.Load(),
	}
}
