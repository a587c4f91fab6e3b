package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// callbackTimeout bounds the detached webhook call so an unresponsive
// endpoint cannot pin a goroutine indefinitely.
const callbackTimeout = 10 * time.Second

// callbackPayload mirrors the delivery outcome for webhook consumers.
type callbackPayload struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	Success        bool       `json:"success"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}

// sendCallback fires a best-effort webhook with the outcome. It runs on the
// caller's goroutine with its own context; the Service invokes it detached.
// Failures are logged and never propagated or retried.
func sendCallback(client *http.Client, log *slog.Logger, url string, id uuid.UUID, result Result) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	body, err := json.Marshal(callbackPayload{
		NotificationID: id,
		Success:        result.Success,
		ErrorMessage:   result.ErrorMessage,
		SentAt:         result.SentAt,
	})
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to marshal webhook callback",
			slog.String("notification_id", id.String()),
			slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to build webhook callback request",
			slog.String("callback_url", url),
			slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "webhook callback failed",
			slog.String("callback_url", url),
			slog.String("notification_id", id.String()),
			slog.String("error", err.Error()))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		log.LogAttrs(ctx, slog.LevelWarn, "webhook callback rejected",
			slog.String("callback_url", url),
			slog.String("notification_id", id.String()),
			slog.Int("status_code", resp.StatusCode))
		return
	}

	log.LogAttrs(ctx, slog.LevelDebug, "webhook callback delivered",
		slog.String("callback_url", url),
		slog.String("notification_id", id.String()))
}
