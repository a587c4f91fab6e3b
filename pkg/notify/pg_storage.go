package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/template"
)

// PgStorage implements Storage and template.Repository on PostgreSQL.
// Updates are last-writer-wins, which the append-mostly status lifecycle
// tolerates.
type PgStorage struct {
	pool *pgxpool.Pool
}

// NewPgStorage creates a PostgreSQL-backed storage.
func NewPgStorage(pool *pgxpool.Pool) *PgStorage {
	return &PgStorage{pool: pool}
}

// Migrate creates the notifications and notification_templates tables if
// they do not exist. Safe to re-run at startup.
func (s *PgStorage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL,
			priority SMALLINT NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			data JSONB,
			recipient_email TEXT NOT NULL DEFAULT '',
			recipient_phone TEXT NOT NULL DEFAULT '',
			device_token TEXT NOT NULL DEFAULT '',
			im_token TEXT NOT NULL DEFAULT '',
			retry_count INT NOT NULL DEFAULT 0,
			max_retry_count INT NOT NULL DEFAULT 3,
			next_retry_at TIMESTAMPTZ,
			provider_message_id TEXT NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			sent_at TIMESTAMPTZ,
			read_at TIMESTAMPTZ,
			is_deleted BOOLEAN NOT NULL DEFAULT false
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created
			ON notifications (user_id, created_at DESC) WHERE NOT is_deleted;

		CREATE TABLE IF NOT EXISTS notification_templates (
			code TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT true,
			is_deleted BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (code, channel, language)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate notification tables: %w", err)
	}
	return nil
}

// Create stores a new notification record.
func (s *PgStorage) Create(ctx context.Context, n *Notification) error {
	data, err := marshalData(n.Data)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, channel, status, priority, title, body, data,
			recipient_email, recipient_phone, device_token, im_token,
			retry_count, max_retry_count, next_retry_at,
			provider_message_id, last_error, created_at, sent_at, read_at, is_deleted
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		n.ID, n.UserID, n.Channel, n.Status, n.Priority, n.Title, n.Body, data,
		n.RecipientEmail, n.RecipientPhone, n.DeviceToken, n.IMToken,
		n.RetryCount, n.MaxRetryCount, n.NextRetryAt,
		n.ProviderMessageID, n.LastError, n.CreatedAt, n.SentAt, n.ReadAt, n.Deleted,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Update replaces the stored record for n.ID.
func (s *PgStorage) Update(ctx context.Context, n *Notification) error {
	data, err := marshalData(n.Data)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET
			status = $2, priority = $3, title = $4, body = $5, data = $6,
			retry_count = $7, max_retry_count = $8, next_retry_at = $9,
			provider_message_id = $10, last_error = $11,
			sent_at = $12, read_at = $13, is_deleted = $14
		WHERE id = $1`,
		n.ID, n.Status, n.Priority, n.Title, n.Body, data,
		n.RetryCount, n.MaxRetryCount, n.NextRetryAt,
		n.ProviderMessageID, n.LastError, n.SentAt, n.ReadAt, n.Deleted,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Get returns the notification, or ErrNotificationNotFound.
func (s *PgStorage) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, channel, status, priority, title, body, data,
			recipient_email, recipient_phone, device_token, im_token,
			retry_count, max_retry_count, next_retry_at,
			provider_message_id, last_error, created_at, sent_at, read_at, is_deleted
		FROM notifications
		WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}

	n, err := pgx.CollectExactlyOneRow(rows, scanNotification)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return &n, nil
}

// ListByUser returns the user's notifications, newest first, 1-based pages.
func (s *PgStorage) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, channel, status, priority, title, body, data,
			recipient_email, recipient_phone, device_token, im_token,
			retry_count, max_retry_count, next_retry_at,
			provider_message_id, last_error, created_at, sent_at, read_at, is_deleted
		FROM notifications
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	notifications, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return notifications, nil
}

// Template returns the active template for (code, channel, language),
// satisfying template.Repository.
func (s *PgStorage) Template(ctx context.Context, code, channel, language string) (*template.Template, error) {
	var t template.Template
	err := s.pool.QueryRow(ctx, `
		SELECT code, name, channel, language, subject, body, is_active
		FROM notification_templates
		WHERE code = $1 AND channel = $2 AND language = $3
			AND is_active AND NOT is_deleted`,
		code, channel, language,
	).Scan(&t.Code, &t.Name, &t.Channel, &t.Language, &t.Subject, &t.Body, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, template.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &t, nil
}

func scanNotification(row pgx.CollectableRow) (Notification, error) {
	var n Notification
	var data []byte
	err := row.Scan(
		&n.ID, &n.UserID, &n.Channel, &n.Status, &n.Priority, &n.Title, &n.Body, &data,
		&n.RecipientEmail, &n.RecipientPhone, &n.DeviceToken, &n.IMToken,
		&n.RetryCount, &n.MaxRetryCount, &n.NextRetryAt,
		&n.ProviderMessageID, &n.LastError, &n.CreatedAt, &n.SentAt, &n.ReadAt, &n.Deleted,
	)
	if err != nil {
		return Notification{}, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return Notification{}, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return n, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode notification data: %w", err)
	}
	return b, nil
}
