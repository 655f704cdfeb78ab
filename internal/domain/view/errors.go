package view

import "errors"

// Sentinel error kinds for controller transitions.
var (
	ErrUnknownSelectionKey = errors.New("unknown selection key")
	ErrWrongMode           = errors.New("transition not valid in current mode")
	ErrUnknownMode         = errors.New("unknown view mode")
)
