package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/template"
)

// RateLimiter gates sends per (subject, channel). Allowed must not increment;
// Record counts a successful send. A nil limiter disables the gate.
type RateLimiter interface {
	Allowed(ctx context.Context, key, channel string) (bool, error)
	Record(ctx context.Context, key, channel string) error
}

// TemplateRenderer resolves and renders a (code, channel, language) template.
// template.Engine satisfies this. A nil renderer disables templating.
type TemplateRenderer interface {
	RenderTemplate(ctx context.Context, code, channel, language string, placeholders map[string]string) (subject, body string, err error)
}

// Service is the notification orchestrator.
type Service struct {
	storage   Storage
	senders   []Sender
	limiter   RateLimiter
	templates TemplateRenderer

	maxAttempts int
	backoff     func(attempt int) time.Duration

	httpClient *http.Client
	logger     *slog.Logger

	// callbacks tracks detached webhook goroutines for clean shutdown.
	callbacks sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter enables the per-(recipient, channel) rate limit gate.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithTemplates enables template rendering.
func WithTemplates(renderer TemplateRenderer) Option {
	return func(s *Service) { s.templates = renderer }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient sets the client used for webhook callbacks.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithMaxAttempts overrides the in-call attempt budget (default 3).
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff overrides the in-call backoff schedule. Tests use this to
// avoid real sleeps.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(s *Service) {
		if fn != nil {
			s.backoff = fn
		}
	}
}

// NewService creates the orchestrator with the given storage and senders.
func NewService(storage Storage, senders []Sender, opts ...Option) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageRequired
	}
	if len(senders) == 0 {
		return nil, ErrNoSenders
	}

	s := &Service{
		storage:     storage,
		senders:     senders,
		maxAttempts: DefaultMaxRetryCount,
		backoff:     attemptBackoff,
		httpClient:  &http.Client{Timeout: callbackTimeout},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Send delivers a notification synchronously: rate limit gate, template
// rendering, persistence in Processing status, channel dispatch under the
// in-call retry policy, status bookkeeping, and the optional webhook
// callback.
func (s *Service) Send(ctx context.Context, msg Message) Result {
	rateLimitKey := "user:" + msg.UserID.String()

	// 1. Rate limit gate: rejected messages leave no trace.
	if s.limiter != nil {
		allowed, err := s.limiter.Allowed(ctx, rateLimitKey, string(msg.Channel))
		if err != nil {
			return failureResult(uuid.Nil, fmt.Errorf("%w: %w", ErrRateLimited, err))
		}
		if !allowed {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "notification rate limited",
				slog.String("user_id", msg.UserID.String()),
				slog.String("channel", string(msg.Channel)))
			return failureResult(uuid.Nil, ErrRateLimited)
		}
	}

	// 2. Validation: before persistence, so invalid sends are not recorded.
	if err := msg.Validate(); err != nil {
		return failureResult(uuid.Nil, err)
	}

	// 3. Template rendering: rendered values win only when non-empty.
	s.renderTemplate(ctx, &msg)

	// 4. Persist in Processing status so interrupted sends are auditable.
	notification := s.newNotification(msg, StatusProcessing)
	if err := s.storage.Create(ctx, notification); err != nil {
		return failureResult(uuid.Nil, fmt.Errorf("persist notification: %w", err))
	}

	sender := senderFor(s.senders, msg.Channel)
	if sender == nil {
		s.markFailed(ctx, notification, ErrNoChannelImplementation)
		result := failureResult(notification.ID, ErrNoChannelImplementation)
		s.fireCallback(msg.CallbackURL, notification.ID, result)
		return result
	}

	// 5. Dispatch under the bounded in-call retry policy.
	providerMessageID, err := s.sendWithRetry(ctx, sender, msg, notification)

	var result Result
	if err != nil {
		s.markFailed(ctx, notification, err)
		result = failureResult(notification.ID, err)
	} else {
		s.markSent(ctx, notification, providerMessageID)
		if s.limiter != nil {
			if recordErr := s.limiter.Record(ctx, rateLimitKey, string(msg.Channel)); recordErr != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record rate limit usage",
					slog.String("user_id", msg.UserID.String()),
					slog.String("error", recordErr.Error()))
			}
		}
		result = successResult(notification.ID, providerMessageID)
	}

	s.fireCallback(msg.CallbackURL, notification.ID, result)
	return result
}

// Queue persists a notification in Pending status without sending. The
// record is picked up later by a broker consumer or an external trigger.
func (s *Service) Queue(ctx context.Context, msg Message) (uuid.UUID, error) {
	if err := msg.Validate(); err != nil {
		return uuid.Nil, err
	}

	notification := s.newNotification(msg, StatusPending)
	if err := s.storage.Create(ctx, notification); err != nil {
		return uuid.Nil, fmt.Errorf("persist notification: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification queued",
		slog.String("notification_id", notification.ID.String()),
		slog.String("user_id", msg.UserID.String()),
		slog.String("channel", string(msg.Channel)))

	return notification.ID, nil
}

// Get returns a notification by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.storage.Get(ctx, id)
}

// ListForUser returns a page of the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, error) {
	return s.storage.ListByUser(ctx, userID, page, pageSize)
}

// MarkRead stamps the read timestamp once; already-read records are no-ops.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	notification, err := s.storage.Get(ctx, id)
	if err != nil {
		return err
	}
	if notification.ReadAt != nil {
		return nil
	}

	notification.MarkRead()
	return s.storage.Update(ctx, notification)
}

// Retry reconstructs the message from a persisted notification and sends it
// again. Fails fast with ErrMaxRetriesReached once the budget is exhausted.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (Result, error) {
	notification, err := s.storage.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if notification.RetriesExhausted() {
		return Result{}, ErrMaxRetriesReached
	}

	msg := Message{
		UserID:         notification.UserID,
		Channel:        notification.Channel,
		Priority:       notification.Priority,
		Title:          notification.Title,
		Body:           notification.Body,
		Data:           notification.Data,
		RecipientEmail: notification.RecipientEmail,
		RecipientPhone: notification.RecipientPhone,
		DeviceToken:    notification.DeviceToken,
		IMToken:        notification.IMToken,
	}

	notification.RetryCount++
	notification.Status = StatusRetrying
	if err := s.storage.Update(ctx, notification); err != nil {
		return Result{}, fmt.Errorf("update notification: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "retrying notification",
		slog.String("notification_id", id.String()),
		slog.Int("retry_count", notification.RetryCount))

	return s.Send(ctx, msg), nil
}

// Close waits for in-flight webhook callbacks to finish.
func (s *Service) Close() {
	s.callbacks.Wait()
}

// sendWithRetry makes up to maxAttempts delivery attempts, backing off
// 2^attempt seconds between transient failures. Each failed attempt counts
// against the notification's persisted retry budget.
func (s *Service) sendWithRetry(ctx context.Context, sender Sender, msg Message, notification *Notification) (string, error) {
	var lastErr error

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		providerMessageID, err := sender.Send(ctx, msg)
		if err == nil {
			return providerMessageID, nil
		}

		lastErr = err
		notification.RetryCount++

		if !IsTransient(err) {
			break
		}

		s.logger.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed",
			slog.String("notification_id", notification.ID.String()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", s.maxAttempts),
			slog.String("error", err.Error()))

		if attempt < s.maxAttempts-1 {
			if err := sleep(ctx, s.backoff(attempt)); err != nil {
				return "", errors.Join(lastErr, err)
			}
		}
	}

	return "", lastErr
}

// renderTemplate swaps in rendered subject/body when a template applies.
// A missing template falls back to the literal title/body silently.
func (s *Service) renderTemplate(ctx context.Context, msg *Message) {
	if s.templates == nil || msg.TemplateCode == "" || len(msg.Placeholders) == 0 {
		return
	}

	subject, body, err := s.templates.RenderTemplate(ctx, msg.TemplateCode, string(msg.Channel), msg.language(), msg.Placeholders)
	if err != nil {
		if !errors.Is(err, template.ErrTemplateNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelError, "template rendering failed",
				slog.String("template_code", msg.TemplateCode),
				slog.String("error", err.Error()))
		}
		return
	}

	if subject != "" {
		msg.Title = subject
	}
	if body != "" {
		msg.Body = body
	}
}

func (s *Service) newNotification(msg Message, status Status) *Notification {
	return &Notification{
		ID:             uuid.New(),
		UserID:         msg.UserID,
		Channel:        msg.Channel,
		Status:         status,
		Priority:       msg.Priority,
		Title:          msg.Title,
		Body:           msg.Body,
		Data:           msg.Data,
		RecipientEmail: msg.RecipientEmail,
		RecipientPhone: msg.RecipientPhone,
		DeviceToken:    msg.DeviceToken,
		IMToken:        msg.IMToken,
		MaxRetryCount:  DefaultMaxRetryCount,
		CreatedAt:      time.Now().UTC(),
	}
}

func (s *Service) markSent(ctx context.Context, n *Notification, providerMessageID string) {
	now := time.Now().UTC()
	n.Status = StatusSent
	n.SentAt = &now
	n.ProviderMessageID = providerMessageID
	n.LastError = ""
	n.NextRetryAt = nil

	if err := s.storage.Update(ctx, n); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to mark notification sent",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()))
	}
}

// markFailed records the failure and, while the retry budget allows it,
// schedules a persisted external retry at now + 2^(retryCount-1) minutes.
// This schedule is independent of the in-call backoff.
func (s *Service) markFailed(ctx context.Context, n *Notification, cause error) {
	n.Status = StatusFailed
	n.LastError = cause.Error()

	if n.RetryCount > 0 && n.RetryCount <= n.MaxRetryCount && IsTransient(cause) {
		at := time.Now().UTC().Add(scheduleBackoff(n.RetryCount - 1))
		n.NextRetryAt = &at
	}

	if err := s.storage.Update(ctx, n); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to mark notification failed",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()))
	}
}

// fireCallback launches the detached webhook goroutine when a callback URL
// is present. No result flows back to the send path.
func (s *Service) fireCallback(url string, id uuid.UUID, result Result) {
	if url == "" {
		return
	}

	s.callbacks.Add(1)
	go func() {
		defer s.callbacks.Done()
		sendCallback(s.httpClient, s.logger, url, id, result)
	}()
}
