package cache

import (
	"fmt"
	"time"

	"github.com/jonwraymond/cachekit/observe"
)

// Config configures a cache. The zero value is an unbounded cache whose
// entries never expire.
type Config[K comparable, V any] struct {
	// Name identifies the cache in logs and metrics.
	// Default: the variant name (fifo, lru, timed, weak)
	Name string

	// Capacity bounds the number of entries. 0 means unbounded.
	Capacity int

	// DefaultTTL and MaxTTL feed the TTL Policy.
	DefaultTTL time.Duration
	MaxTTL     time.Duration

	// Sliding measures expiry from the last successful read instead of
	// from the write.
	Sliding bool

	// SweepInterval starts a background sweep of expired entries.
	// Only TimedCache honors it. 0 means lazy expiry only.
	SweepInterval time.Duration

	// OnRemove is notified of every removal.
	OnRemove Listener[K, V]

	// Clock returns the current time.
	// Default: time.Now
	Clock func() time.Time

	// Telemetry receives logs, metrics and compute spans.
	// Default: observe.Nop()
	Telemetry *observe.Telemetry
}

// Validate checks the configuration and returns an error wrapping
// ErrConfiguration if it is unusable.
func (c Config[K, V]) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative, got %d", ErrConfiguration, c.Capacity)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: default TTL must not be negative, got %v", ErrConfiguration, c.DefaultTTL)
	}
	if c.MaxTTL < 0 {
		return fmt.Errorf("%w: max TTL must not be negative, got %v", ErrConfiguration, c.MaxTTL)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval must not be negative, got %v", ErrConfiguration, c.SweepInterval)
	}
	return nil
}

func (c Config[K, V]) withDefaults(kind string) Config[K, V] {
	if c.Name == "" {
		c.Name = kind
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Telemetry == nil {
		c.Telemetry = observe.Nop()
	}
	return c
}

func (c Config[K, V]) policy() Policy {
	return Policy{DefaultTTL: c.DefaultTTL, MaxTTL: c.MaxTTL}
}
