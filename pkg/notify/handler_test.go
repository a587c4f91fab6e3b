package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

func TestHandleQueueMessage(t *testing.T) {
	t.Parallel()

	t.Run("delivers a well-formed message", func(t *testing.T) {
		t.Parallel()

		storage := notify.NewMemoryStorage()
		sender := &fakeSender{channel: notify.ChannelEmail, id: "pm-10"}

		svc, err := notify.NewService(storage, []notify.Sender{sender})
		require.NoError(t, err)

		userID := uuid.New()
		body, err := json.Marshal(notify.QueueMessage{
			UserID:         userID,
			Channel:        "Email",
			Title:          "Slip verified",
			Message:        "Your payment went through.",
			RecipientEmail: "user@example.com",
		})
		require.NoError(t, err)

		require.NoError(t, svc.HandleQueueMessage(context.Background(), body))
		assert.Equal(t, 1, sender.callCount())

		list, err := svc.ListForUser(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, notify.StatusSent, list[0].Status)
		assert.Equal(t, notify.ChannelEmail, list[0].Channel)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{&fakeSender{channel: notify.ChannelEmail}})
		require.NoError(t, err)

		err = svc.HandleQueueMessage(context.Background(), []byte("{not json"))
		require.Error(t, err)
	})

	t.Run("transient failure propagates for consumer retry", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs: []error{
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
				notify.ErrTransientProvider,
			},
		}
		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		body, err := json.Marshal(notify.QueueMessage{
			UserID:         uuid.New(),
			Channel:        "email",
			RecipientEmail: "user@example.com",
		})
		require.NoError(t, err)

		err = svc.HandleQueueMessage(context.Background(), body)
		require.ErrorIs(t, err, notify.ErrTransientProvider)
	})

	t.Run("permanent failure is acknowledged, not redelivered", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{
			channel: notify.ChannelEmail,
			errs: []error{
				notify.ErrPermanentProvider,
				notify.ErrPermanentProvider,
			},
		}
		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{sender},
			notify.WithBackoff(noBackoff))
		require.NoError(t, err)

		userID := uuid.New()
		body, err := json.Marshal(notify.QueueMessage{
			UserID:         userID,
			Channel:        "email",
			RecipientEmail: "user@example.com",
		})
		require.NoError(t, err)

		// A nil return acks the delivery; the failure is already recorded.
		require.NoError(t, svc.HandleQueueMessage(context.Background(), body))

		list, err := svc.ListForUser(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, notify.StatusFailed, list[0].Status)
	})

	t.Run("validation failure is acknowledged and leaves no record", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{channel: notify.ChannelEmail}
		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{sender})
		require.NoError(t, err)

		userID := uuid.New()
		body, err := json.Marshal(notify.QueueMessage{
			UserID:  userID,
			Channel: "email",
		})
		require.NoError(t, err)

		require.NoError(t, svc.HandleQueueMessage(context.Background(), body))
		assert.Zero(t, sender.callCount())

		list, err := svc.ListForUser(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("rate limited delivery is acknowledged", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{channel: notify.ChannelEmail}
		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{sender},
			notify.WithRateLimiter(&fakeLimiter{allowed: false}))
		require.NoError(t, err)

		body, err := json.Marshal(notify.QueueMessage{
			UserID:         uuid.New(),
			Channel:        "email",
			RecipientEmail: "user@example.com",
		})
		require.NoError(t, err)

		require.NoError(t, svc.HandleQueueMessage(context.Background(), body))
		assert.Zero(t, sender.callCount())
	})

	t.Run("unsupported channel is acknowledged", func(t *testing.T) {
		t.Parallel()

		svc, err := notify.NewService(notify.NewMemoryStorage(), []notify.Sender{&fakeSender{channel: notify.ChannelEmail}})
		require.NoError(t, err)

		body, err := json.Marshal(notify.QueueMessage{
			UserID:         uuid.New(),
			Channel:        "sms",
			RecipientPhone: "+66812345678",
		})
		require.NoError(t, err)

		require.NoError(t, svc.HandleQueueMessage(context.Background(), body))
	})
}
