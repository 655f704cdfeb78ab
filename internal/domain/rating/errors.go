package rating

import "errors"

// Sentinel error kinds for this package.
var (
	ErrOutOfRange   = errors.New("rating code out of range")
	ErrUnknownLabel = errors.New("unknown rating label")
)
