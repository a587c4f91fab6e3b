package sender

import "errors"

var (
	// ErrInvalidConfig indicates a sender was constructed with missing or
	// malformed settings. Fail fast at startup rather than at send time.
	ErrInvalidConfig = errors.New("invalid sender config")
)
