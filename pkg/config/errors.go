package config

import "errors"

var (
	// ErrNilPointer indicates Load was called with a nil target.
	ErrNilPointer = errors.New("config target must not be nil")

	// ErrParsingConfig indicates the environment could not be parsed into
	// the target struct (missing required variables, bad values).
	ErrParsingConfig = errors.New("failed to parse config")
)
