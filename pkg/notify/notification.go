package notify

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelIM    Channel = "im"
)

// Valid reports whether the channel is one of the known delivery media.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelIM:
		return true
	}
	return false
}

// Priority is the delivery priority of a notification.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityUrgent
)

// Status is the lifecycle state of a persisted notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
	StatusCancelled  Status = "cancelled"
)

// DefaultMaxRetryCount bounds both the in-call retry policy and the
// externally triggered retry path.
const DefaultMaxRetryCount = 3

// Notification is the persisted delivery record. It is mutated only by the
// orchestrator and never deleted, only soft-marked.
type Notification struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Channel  Channel   `json:"channel"`
	Status   Status    `json:"status"`
	Priority Priority  `json:"priority"`

	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`

	// Channel-specific recipient addressing, kept so an externally
	// triggered retry can reconstruct the original message.
	RecipientEmail string `json:"recipient_email,omitempty"`
	RecipientPhone string `json:"recipient_phone,omitempty"`
	DeviceToken    string `json:"device_token,omitempty"`
	IMToken        string `json:"im_token,omitempty"`

	RetryCount    int        `json:"retry_count"`
	MaxRetryCount int        `json:"max_retry_count"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`

	ProviderMessageID string `json:"provider_message_id,omitempty"`
	LastError         string `json:"last_error,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`

	Deleted bool `json:"-"`
}

// MarkRead stamps the read timestamp once; later calls are no-ops.
func (n *Notification) MarkRead() {
	if n.ReadAt == nil {
		now := time.Now().UTC()
		n.ReadAt = &now
	}
}

// RetriesExhausted reports whether the notification reached its retry budget.
func (n *Notification) RetriesExhausted() bool {
	return n.RetryCount >= n.MaxRetryCount
}
