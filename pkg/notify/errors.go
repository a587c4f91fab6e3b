package notify

import "errors"

// Failure taxonomy for notification delivery. Senders and the orchestrator
// wrap these sentinels so callers can classify outcomes with errors.Is.
var (
	// ErrValidation indicates a missing or malformed required field
	// (recipient email/phone/token). Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited indicates the per-(recipient, channel) limit was hit.
	// The message is rejected before any persistence or send attempt.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTransientProvider indicates a network-level or timeout failure
	// talking to the provider. Retried with backoff.
	ErrTransientProvider = errors.New("transient provider failure")

	// ErrPermanentProvider indicates the provider rejected the payload.
	// Not retried.
	ErrPermanentProvider = errors.New("permanent provider failure")

	// ErrNoChannelImplementation indicates no registered sender supports
	// the message channel. A configuration error, not retried.
	ErrNoChannelImplementation = errors.New("no channel implementation found")

	// ErrMaxRetriesReached indicates the notification exhausted its retry
	// budget and is terminal.
	ErrMaxRetriesReached = errors.New("maximum retry attempts reached")

	// ErrNotificationNotFound indicates no notification exists for the id.
	ErrNotificationNotFound = errors.New("notification not found")

	// Constructor validation errors.
	ErrStorageRequired = errors.New("storage is required")
	ErrNoSenders       = errors.New("at least one sender is required")
)

// IsTransient reports whether the error should be retried by the in-call
// retry policy. Validation, rate-limit, and permanent provider failures are
// deliberately excluded.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientProvider)
}
