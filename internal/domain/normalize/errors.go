package normalize

import "errors"

// ErrParse marks a cell that could not be coerced to its column type.
var ErrParse = errors.New("parse warning")
