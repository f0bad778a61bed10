package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Keyer derives string cache keys from structured input.
//
// Contract:
// - Determinism: equal inputs produce equal keys regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key returns a key for input scoped to namespace.
	Key(namespace string, input any) (string, error)
}

// HashKeyer derives keys as <namespace>:<hash>, where hash is the first 16
// hex characters of SHA-256 over the canonical JSON of the input.
type HashKeyer struct{}

// NewHashKeyer creates a HashKeyer.
func NewHashKeyer() *HashKeyer {
	return &HashKeyer{}
}

// Key returns a deterministic key for input. The result is checked with
// ValidateKey, so an over-long namespace yields ErrKeyTooLong.
func (k *HashKeyer) Key(namespace string, input any) (string, error) {
	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	key := namespace + ":" + hex.EncodeToString(sum[:8])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// canonicalize encodes v as JSON with object keys sorted at every depth.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	out := []byte{'{'}
	for i, k := range slices.Sorted(maps.Keys(m)) {
		if i > 0 {
			out = append(out, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, name...)
		out = append(out, ':')

		val, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte{'['}
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		val, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return append(out, ']'), nil
}

var _ Keyer = (*HashKeyer)(nil)
