package broker

import "errors"

var (
	// ErrBrokerUnavailable indicates the AMQP broker cannot be reached.
	// Surfaced as a fatal startup or operational error; a broken
	// connection is never cached.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrTopologyConflict indicates a queue or exchange already exists
	// with different arguments. Fatal at startup, never swallowed.
	ErrTopologyConflict = errors.New("topology declaration conflict")

	// ErrConsumerAlreadyStarted indicates Start was called twice.
	ErrConsumerAlreadyStarted = errors.New("consumer already started")

	// ErrConsumerNotStarted indicates Stop was called before Start.
	ErrConsumerNotStarted = errors.New("consumer not started")

	// ErrHandlerRequired indicates a consumer was built without a handler.
	ErrHandlerRequired = errors.New("handler is required")
)
