package observe

import "errors"

var (
	// ErrInvalidConfig indicates an unusable Config. The wrapping error
	// lists every problem found.
	ErrInvalidConfig = errors.New("observe: invalid configuration")

	// ErrNilObserver indicates a nil Observer was provided.
	ErrNilObserver = errors.New("observe: observer is nil")
)

// RedactedFields lists field keys whose values the logger replaces.
// Cached values and supplier inputs may carry credentials or user data.
var RedactedFields = []string{
	"value",
	"input",
	"password",
	"secret",
	"token",
	"api_key",
	"credential",
}
