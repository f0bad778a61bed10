package cache

import "time"

// Policy resolves the TTL an entry is stored with.
type Policy struct {
	// DefaultTTL is applied by Put and by PutWithTTL with a negative ttl.
	// If zero, entries never expire unless given an explicit TTL.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Resolved TTLs are clamped to it.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns a policy suited to memoized results.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     1 * time.Hour,
	}
}

// Expires reports whether entries stored with Put will expire.
func (p Policy) Expires() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to store for an override.
// Negative overrides use the default, zero means never expire, and any
// non-zero result is clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl < 0 {
		ttl = p.DefaultTTL
	}
	if ttl == 0 {
		return 0
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
