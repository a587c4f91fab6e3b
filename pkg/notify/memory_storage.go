package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for tests and development.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]Notification
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{notifications: make(map[uuid.UUID]Notification)}
}

// Create stores a new notification record.
func (s *MemoryStorage) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications[n.ID] = *n
	return nil
}

// Update replaces the stored record.
func (s *MemoryStorage) Update(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; !ok {
		return ErrNotificationNotFound
	}
	s.notifications[n.ID] = *n
	return nil
}

// Get returns a copy of the notification, or ErrNotificationNotFound.
func (s *MemoryStorage) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok || n.Deleted {
		return nil, ErrNotificationNotFound
	}
	return &n, nil
}

// ListByUser returns the user's notifications, newest first, 1-based pages.
func (s *MemoryStorage) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Notification
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Deleted {
			all = append(all, n)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	return all[start:min(start+pageSize, len(all))], nil
}
