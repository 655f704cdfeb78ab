package aggregation

import "errors"

// ErrInvalidVirtualGroup reports a virtual group without a usable
// base/complement declaration.
var ErrInvalidVirtualGroup = errors.New("invalid virtual group definition")
