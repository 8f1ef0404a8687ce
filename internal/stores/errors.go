package stores

import "errors"

var (
	// ErrAlreadyClaimed is returned when a pending token id has been used before.
	ErrAlreadyClaimed = errors.New("pending token already used")
	// ErrTokenNotFound is returned when no external token is cached.
	ErrTokenNotFound = errors.New("external token not found")
	// ErrBackend wraps Redis and encoding failures.
	ErrBackend = errors.New("store backend unavailable")
)
