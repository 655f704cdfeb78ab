package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNoSource = errors.New("no panel source configured")
	ErrReload   = errors.New("reload failed")
)
