// Package sender provides the channel implementations behind notification
// delivery: transactional email via Postmark, SMS via Twilio, mobile push
// via Firebase Cloud Messaging, and instant messaging via a LINE
// Notify-compatible endpoint.
//
// Every sender implements notify.Sender: it validates its required recipient
// field before any network call, makes exactly one outbound attempt, and
// classifies failures as transient (network errors, timeouts, provider 5xx
// and 429 responses) or permanent (payload rejections). Retry decisions
// belong to the caller.
//
//	email, err := sender.NewEmail(sender.EmailConfig{
//		ServerToken: cfg.PostmarkServerToken,
//		FromEmail:   "no-reply@example.com",
//	})
//	if err != nil {
//		return err
//	}
//
//	svc, err := notify.NewService(storage, []notify.Sender{email, sms, push, im})
package sender
