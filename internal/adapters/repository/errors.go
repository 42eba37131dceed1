package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrNotRanked    = errors.New("party has no consensus yet")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrClosed       = errors.New("store closed")
)
