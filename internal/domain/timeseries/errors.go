package timeseries

import "errors"

// ErrInvalidWindow reports a year window whose start is after its end.
var ErrInvalidWindow = errors.New("invalid year window")
