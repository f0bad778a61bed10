package cache

import (
	"context"
	"slices"
	"strings"
)

// Func is a computation that can be memoized.
type Func[V any] func(ctx context.Context, input any) (V, error)

// SkipRule reports whether a call tagged with tags must bypass the cache.
type SkipRule func(namespace string, tags []string) bool

// UnsafeTags mark calls with side effects. Their results are never cached.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// DefaultSkipRule skips calls carrying any of UnsafeTags, ignoring case.
func DefaultSkipRule(_ string, tags []string) bool {
	for _, tag := range tags {
		if slices.Contains(UnsafeTags, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// MemoizerOptions configures a Memoizer.
type MemoizerOptions struct {
	// Keyer derives cache keys. Default: HashKeyer
	Keyer Keyer

	// SkipRule decides which calls bypass the cache. Default: DefaultSkipRule
	SkipRule SkipRule

	// AllowUnsafe caches calls even when SkipRule would skip them.
	AllowUnsafe bool
}

// Memoizer caches the results of a Func in a Cache keyed by namespace and
// input. Concurrent identical calls share one computation through
// GetOrCompute. Errors are not cached.
type Memoizer[V any] struct {
	cache     Cache[string, V]
	namespace string
	keyer     Keyer
	skipRule  SkipRule
	unsafe    bool
}

// NewMemoizer creates a Memoizer storing results in c under namespace.
func NewMemoizer[V any](c Cache[string, V], namespace string, opts MemoizerOptions) *Memoizer[V] {
	if opts.Keyer == nil {
		opts.Keyer = NewHashKeyer()
	}
	if opts.SkipRule == nil {
		opts.SkipRule = DefaultSkipRule
	}
	return &Memoizer[V]{
		cache:     c,
		namespace: namespace,
		keyer:     opts.Keyer,
		skipRule:  opts.SkipRule,
		unsafe:    opts.AllowUnsafe,
	}
}

// Do returns the cached result for input or runs fn and caches it.
// Calls with unsafe tags, or whose key cannot be derived, run fn directly.
// A failure of a cached call is returned as a *ComputationError.
func (m *Memoizer[V]) Do(ctx context.Context, input any, tags []string, fn Func[V]) (V, error) {
	if !m.unsafe && m.skipRule(m.namespace, tags) {
		return fn(ctx, input)
	}

	key, err := m.keyer.Key(m.namespace, input)
	if err != nil {
		return fn(ctx, input)
	}

	return m.cache.GetOrCompute(ctx, key, func(ctx context.Context) (V, error) {
		return fn(ctx, input)
	})
}

// Forget drops the cached result for input.
func (m *Memoizer[V]) Forget(ctx context.Context, input any) bool {
	key, err := m.keyer.Key(m.namespace, input)
	if err != nil {
		return false
	}
	return m.cache.Remove(ctx, key)
}
