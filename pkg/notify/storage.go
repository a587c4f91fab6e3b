package notify

import (
	"context"

	"github.com/google/uuid"
)

// Storage persists notification records. The notification table is the
// single source of truth for delivery status; implementations must tolerate
// concurrent updates from the in-call and externally triggered retry paths
// (last-writer-wins is acceptable).
type Storage interface {
	// Create stores a new notification record.
	Create(ctx context.Context, n *Notification) error

	// Update replaces the stored record for n.ID.
	Update(ctx context.Context, n *Notification) error

	// Get returns the notification, or ErrNotificationNotFound.
	// Soft-deleted records are invisible.
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)

	// ListByUser returns the user's notifications, newest first.
	// Pages are 1-based.
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, error)
}
