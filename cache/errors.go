package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations.
var (
	// ErrConfiguration indicates invalid constructor arguments.
	ErrConfiguration = errors.New("cache: invalid configuration")

	// ErrComputation indicates a GetOrCompute supplier failed.
	// Match it with errors.Is; use errors.As with *ComputationError for details.
	ErrComputation = errors.New("cache: computation failed")

	// ErrTimeout indicates a GetOrCompute caller stopped waiting at its deadline.
	// The computation itself keeps running for other callers.
	ErrTimeout = errors.New("cache: wait for computation timed out")

	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("cache: cache is closed")

	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// ComputationError is returned to every caller waiting on a failed supplier.
type ComputationError struct {
	Key any
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("cache: computation for key %v failed: %v", e.Key, e.Err)
}

// Unwrap returns the supplier error.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Is reports ErrComputation as a match.
func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}

// panicError carries a recovered supplier panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("supplier panicked: %v", e.value)
}
