package dispatch

import "errors"

var (
	// ErrHandlerRequired indicates a pool was built without a handler.
	ErrHandlerRequired = errors.New("handler is required")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("pool already started")

	// ErrNotStarted indicates Stop was called before Start.
	ErrNotStarted = errors.New("pool not started")

	// ErrStopped indicates Enqueue was called after Stop.
	ErrStopped = errors.New("pool stopped")
)
