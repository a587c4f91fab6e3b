package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QueueMessage is the wire schema carried on the notifications queue.
// MessageID and Timestamp are stamped by the publisher.
type QueueMessage struct {
	UserID   uuid.UUID      `json:"userId"`
	Channel  string         `json:"channel"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority int            `json:"priority"`
	Data     map[string]any `json:"data,omitempty"`

	RecipientEmail string `json:"recipientEmail,omitempty"`
	RecipientPhone string `json:"recipientPhone,omitempty"`
	DeviceToken    string `json:"deviceToken,omitempty"`
	IMToken        string `json:"imToken,omitempty"`

	MessageID string `json:"messageId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// HandleQueueMessage adapts a broker delivery into a synchronous send. It is
// the handler function for the notifications-queue consumer; a returned error
// triggers the consumer's retry-then-dead-letter policy.
//
// Only failures a redelivery could cure propagate: undecodable payloads,
// transient provider errors, and infrastructure failures. Validation
// failures, rate-limit rejections, and permanent provider failures are
// terminal, already recorded against the notification, and redelivering them
// would only mint duplicate records, so the delivery is acknowledged.
func (s *Service) HandleQueueMessage(ctx context.Context, body []byte) error {
	var qm QueueMessage
	if err := json.Unmarshal(body, &qm); err != nil {
		return fmt.Errorf("decode queue message: %w", err)
	}

	msg := Message{
		UserID:         qm.UserID,
		Channel:        Channel(strings.ToLower(qm.Channel)),
		Priority:       Priority(qm.Priority),
		Title:          qm.Title,
		Body:           qm.Message,
		Data:           qm.Data,
		RecipientEmail: qm.RecipientEmail,
		RecipientPhone: qm.RecipientPhone,
		DeviceToken:    qm.DeviceToken,
		IMToken:        qm.IMToken,
	}

	result := s.Send(ctx, msg)
	if !result.Success && !isTerminal(result.Err) {
		return fmt.Errorf("send notification for user %s: %w", qm.UserID, result.Err)
	}
	return nil
}

// isTerminal reports whether a send failure cannot be cured by redelivering
// the queue message. Transient provider errors and infrastructure failures
// (storage, unclassified) stay retryable.
func isTerminal(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrPermanentProvider) ||
		errors.Is(err, ErrNoChannelImplementation)
}
