// Package notify orchestrates multi-channel notification delivery.
//
// The Service is the facade in front of rate limiting, template rendering,
// persistence, and the per-channel senders. A send walks through a fixed
// pipeline: the rate limit gate, optional template rendering, persisting the
// notification in Processing status, dispatching to the sender that supports
// the channel under a bounded retry policy, status bookkeeping, and an
// optional fire-and-forget webhook callback.
//
// # Basic Usage
//
//	svc, err := notify.NewService(
//		storage,
//		[]notify.Sender{emailSender, smsSender},
//		notify.WithRateLimiter(limiter),
//		notify.WithTemplates(engine),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result := svc.Send(ctx, notify.Message{
//		UserID:         userID,
//		Channel:        notify.ChannelEmail,
//		RecipientEmail: "user@example.com",
//		Title:          "Payment received",
//		Body:           "We received your payment.",
//	})
//	if !result.Success {
//		// result.ErrorMessage carries a human-readable reason.
//	}
//
// # Failure modes
//
// Expected failures are typed sentinel errors (ErrValidation, ErrRateLimited,
// ErrTransientProvider, ErrPermanentProvider, ErrNoChannelImplementation)
// surfaced through Result rather than panics. Only transient provider errors
// are retried in-call; on final failure the notification additionally gets a
// persisted NextRetryAt schedule for a later, externally triggered
// Service.Retry - two independent retry layers.
//
// # Delivery guarantees
//
// At-least-once. Idempotency is left to consumers; a notification record is
// never deleted, only soft-marked.
package notify
