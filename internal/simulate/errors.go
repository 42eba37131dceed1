package simulate

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrNotReady         = errors.New("ranking not ready")
	ErrMismatch         = errors.New("ranking mismatch")
)
