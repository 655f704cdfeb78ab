package source

import "errors"

// Sentinel errors for row sources.
var (
	ErrRead              = errors.New("read panel failed")
	ErrUnsupportedFormat = errors.New("unsupported panel format")
	ErrNoHeader          = errors.New("panel has no header row")
)
