package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/template"
)

// fakeSender scripts per-attempt outcomes for one channel.
type fakeSender struct {
	channel notify.Channel
	errs    []error
	id      string

	mu    sync.Mutex
	calls int
}

func (f *fakeSender) Supports(channel notify.Channel) bool {
	return channel == f.channel
}

func (f *fakeSender) Send(ctx context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	return f.id, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLimiter scripts the gate outcome and records usage.
type fakeLimiter struct {
	allowed bool
	err     error

	mu       sync.Mutex
	recorded []string
}

func (f *fakeLimiter) Allowed(ctx context.Context, key, channel string) (bool, error) {
	return f.allowed, f.err
}

func (f *fakeLimiter) Record(ctx context.Context, key, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, key+":"+channel)
	return nil
}

func noBackoff(int) time.Duration { return 0 }

func emailMessage(userID uuid.UUID) notify.Message {
	return notify.Message{
		UserID:         userID,
		Channel:        notify.ChannelEmail,
		Title:          "Slip verified",
		Body:           "Your payment went through.",
		RecipientEmail: "user@example.com",
	}
}

func TestNewService(t *testing.T) {
	t.Parallel()

	_, err := notify.NewService(nil, []notify.Sender{&fakeSender{}})
	require.ErrorIs(t, err, notify.ErrStorageRequired)

	_, err = notify.NewService(notify.NewMemoryStorage(), nil)
	require.ErrorIs(t, err, notify.ErrNoSenders)
}

func TestServiceSend(t *testing.T) {
	t.Parallel()

	t.Run("delivers and records", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-1"}
		limiter := &fakeLimiter{allowed: true}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithRateLimiter(limiter),
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		userID := uuid.New()
		result := svc.Send(context.Background(), emailMessage(userID))

		require.True(t, result.Success)
		assert.Equal(t, "pm-1", result.ProviderMessageID)
		require.NotNil(t, result.SentAt)

		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, stored.Status)
		assert.Equal(t, "pm-1", stored.ProviderMessageID)
		assert.NotNil(t, stored.SentAt)
		assert.Zero(t, stored.RetryCount)
		assert.Nil(t, stored.NextRetryAt)

		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		require.Len(t, limiter.recorded, 1)
		assert.Equal(t, "user:"+userID.String()+":email", limiter.recorded[0])
	})

	t.Run("invalid message leaves no record", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail}

		svc, err := notify.NewService(storage, []notify.Sender{sender})
		require.NoError(t, err)

		userID := uuid.New()
		msg := emailMessage(userID)
		msg.RecipientEmail = ""

		result := svc.Send(context.Background(), msg)

		require.False(t, result.Success)
		require.ErrorIs(t, result.Err, notify.ErrValidation)
		assert.Equal(t, uuid.Nil, result.NotificationID)
		assert.Zero(t, sender.callCount())

		list, err := svc.ListForUser(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("transient failures exhaust attempts and schedule external retry", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs: []error{
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
			},
		}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		before := time.Now().UTC()
		result := svc.Send(context.Background(), emailMessage(uuid.New()))

		require.False(t, result.Success)
		require.ErrorIs(t, result.Err, notify.ErrTransientProvider)
		assert.Equal(t, 3, sender.callCount())

		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)
		assert.Equal(t, 3, stored.RetryCount)
		assert.NotEmpty(t, stored.LastError)

		// Third failure schedules the external retry 2^2 minutes out.
		require.NotNil(t, stored.NextRetryAt)
		assert.WithinDuration(t, before.Add(4*time.Minute), *stored.NextRetryAt, 5*time.Second)
	})

	t.Run("permanent failure stops after one attempt", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs:    []error{notify.ErrPermanentProvider},
		}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		result := svc.Send(context.Background(), emailMessage(uuid.New()))

		require.False(t, result.Success)
		require.ErrorIs(t, result.Err, notify.ErrPermanentProvider)
		assert.Equal(t, 1, sender.callCount())

		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Nil(t, stored.NextRetryAt)
	})

	t.Run("rate limited before any provider call", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithRateLimiter(&fakeLimiter{allowed: false}))
		require.NoError(t, err)

		userID := uuid.New()
		result := svc.Send(context.Background(), emailMessage(userID))

		require.False(t, result.Success)
		require.ErrorIs(t, result.Err, notify.ErrRateLimited)
		assert.Zero(t, sender.callCount())

		list, err := svc.ListForUser(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("no sender for channel", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail}

		svc, err := notify.NewService(storage, []notify.Sender{sender})
		require.NoError(t, err)

		msg := notify.Message{
			UserID:         uuid.New(),
			Channel:        notify.ChannelSMS,
			RecipientPhone: "+66812345678",
		}
		result := svc.Send(context.Background(), msg)

		require.False(t, result.Success)
		require.ErrorIs(t, result.Err, notify.ErrNoChannelImplementation)

		// The record survives as a failed notification for auditing.
		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusFailed, stored.Status)
	})
}

func TestServiceTemplates(t *testing.T) {
	t.Parallel()

	newEngine := func(t *testing.T) *template.Engine {
		t.Helper()

		repo := template.NewMemoryRepository()
		repo.Put(template.Template{
			Code:     "slip_verified",
			Channel:  "email",
			Language: "en",
			Subject:  "Hello {{name}}",
			Body:     "Amount {{amount}} confirmed.",
			Active:   true,
		})

		engine, err := template.NewEngine(repo)
		require.NoError(t, err)
		return engine
	}

	t.Run("rendered template overrides literal content", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-2"}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithTemplates(newEngine(t)))
		require.NoError(t, err)

		msg := emailMessage(uuid.New())
		msg.TemplateCode = "slip_verified"
		msg.Placeholders = map[string]string{"name": "Somchai", "amount": "100.00"}

		result := svc.Send(context.Background(), msg)
		require.True(t, result.Success)

		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, "Hello Somchai", stored.Title)
		assert.Equal(t, "Amount 100.00 confirmed.", stored.Body)
	})

	t.Run("missing template falls back to literal content", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-3"}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithTemplates(newEngine(t)))
		require.NoError(t, err)

		msg := emailMessage(uuid.New())
		msg.TemplateCode = "nonexistent"
		msg.Placeholders = map[string]string{"name": "Somchai"}

		result := svc.Send(context.Background(), msg)
		require.True(t, result.Success)

		stored, err := svc.Get(context.Background(), result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, "Slip verified", stored.Title)
		assert.Equal(t, "Your payment went through.", stored.Body)
	})
}

func TestServiceQueue(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	sender := &fakeSender{channel: notify.ChannelEmail}

	svc, err := notify.NewService(storage, []notify.Sender{sender})
	require.NoError(t, err)

	t.Run("persists pending without sending", func(t *testing.T) {
		t.Parallel()

		id, err := svc.Queue(context.Background(), emailMessage(uuid.New()))
		require.NoError(t, err)

		stored, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusPending, stored.Status)
		assert.Zero(t, sender.callCount())
	})

	t.Run("rejects invalid message", func(t *testing.T) {
		t.Parallel()

		msg := emailMessage(uuid.New())
		msg.RecipientEmail = ""

		_, err := svc.Queue(context.Background(), msg)
		require.ErrorIs(t, err, notify.ErrValidation)
	})
}

func TestServiceRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries a failed notification", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs:    []error{notify.ErrPermanentProvider},
			id:      "pm-4",
		}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		first := svc.Send(context.Background(), emailMessage(uuid.New()))
		require.False(t, first.Success)

		second, err := svc.Retry(context.Background(), first.NotificationID)
		require.NoError(t, err)
		require.True(t, second.Success)
		assert.Equal(t, "pm-4", second.ProviderMessageID)
	})

	t.Run("fails fast once the budget is exhausted", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs: []error{
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
			},
		}

		svc, err := notify.NewService(storage, []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		result := svc.Send(context.Background(), emailMessage(uuid.New()))
		require.False(t, result.Success)

		_, err = svc.Retry(context.Background(), result.NotificationID)
		require.ErrorIs(t, err, notify.ErrMaxRetriesReached)
	})

	t.Run("unknown notification", func(t *testing.T) {
		t.Parallel()

		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{&fakeSender{channel: notify.ChannelEmail}})
		require.NoError(t, err)

		_, err = svc.Retry(context.Background(), uuid.New())
		require.ErrorIs(t, err, notify.ErrNotificationNotFound)
	})
}

func TestServiceMarkRead(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-5"}

	svc, err := notify.NewService(storage, []notify.Sender{sender})
	require.NoError(t, err)

	result := svc.Send(context.Background(), emailMessage(uuid.New()))
	require.True(t, result.Success)

	require.NoError(t, svc.MarkRead(context.Background(), result.NotificationID))

	stored, err := svc.Get(context.Background(), result.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReadAt)
	firstRead := *stored.ReadAt

	// A second call must not move the timestamp.
	require.NoError(t, svc.MarkRead(context.Background(), result.NotificationID))

	stored, err = svc.Get(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, firstRead, *stored.ReadAt)
}

func TestServiceListForUser(t *testing.T) {
	t.Parallel()

	storage := notify.NewMemoryStorage()
	sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-6"}

	svc, err := notify.NewService(storage, []notify.Sender{sender})
	require.NoError(t, err)

	userID := uuid.New()
	for i := 0; i < 5; i++ {
		_, err := svc.Queue(context.Background(), emailMessage(userID))
		require.NoError(t, err)
	}
	_, err = svc.Queue(context.Background(), emailMessage(uuid.New()))
	require.NoError(t, err)

	page, err := svc.ListForUser(context.Background(), userID, 1, 3)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	page, err = svc.ListForUser(context.Background(), userID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = svc.ListForUser(context.Background(), userID, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestServiceCallback(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer srv.Close()

	storage := notify.NewMemoryStorage()
	sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-7"}

	svc, err := notify.NewService(storage, []notify.Sender{sender})
	require.NoError(t, err)

	msg := emailMessage(uuid.New())
	msg.CallbackURL = srv.URL

	result := svc.Send(context.Background(), msg)
	require.True(t, result.Success)

	svc.Close()

	select {
	case payload := <-received:
		assert.Equal(t, result.NotificationID.String(), payload["notification_id"])
		assert.Equal(t, true, payload["success"])
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
}
