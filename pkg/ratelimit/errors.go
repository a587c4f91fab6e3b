package ratelimit

import "errors"

var (
	// Common rate limiting errors.
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidRule    = errors.New("invalid rule")
	ErrKeyRequired    = errors.New("key is required")
	ErrStoreRequired  = errors.New("store is required")

	// ErrStoreUnavailable indicates the counter store cannot be reached.
	// Callers must treat this as a denial, not as unlimited quota.
	ErrStoreUnavailable = errors.New("counter store unavailable")
)
