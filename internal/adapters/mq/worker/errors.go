package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
)
