package notify

import (
	"time"

	"github.com/google/uuid"
)

// Result is the structured outcome of a delivery attempt returned to callers
// and mirrored in webhook callbacks.
type Result struct {
	Success           bool       `json:"success"`
	NotificationID    uuid.UUID  `json:"notification_id,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`

	// Err carries the typed failure for errors.Is classification; it is
	// not serialized.
	Err error `json:"-"`
}

func successResult(id uuid.UUID, providerMessageID string) Result {
	now := time.Now().UTC()
	return Result{
		Success:           true,
		NotificationID:    id,
		ProviderMessageID: providerMessageID,
		SentAt:            &now,
	}
}

func failureResult(id uuid.UUID, err error) Result {
	return Result{
		Success:        false,
		NotificationID: id,
		ErrorMessage:   err.Error(),
		Err:            err,
	}
}
