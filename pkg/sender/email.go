package sender

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailConfig holds the Postmark credentials and sender identity.
type EmailConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	FromEmail    string `env:"EMAIL_FROM,required"`
	ReplyTo      string `env:"EMAIL_REPLY_TO"`
}

// Email delivers notifications over transactional email via Postmark.
type Email struct {
	client *postmark.Client
	cfg    EmailConfig
}

// EmailOption configures the Email sender.
type EmailOption func(*Email)

// WithEmailBaseURL overrides the Postmark API endpoint. Used in tests.
func WithEmailBaseURL(baseURL string) EmailOption {
	return func(e *Email) {
		e.client.BaseURL = baseURL
	}
}

// WithEmailHTTPClient overrides the HTTP client used for API calls.
func WithEmailHTTPClient(client *http.Client) EmailOption {
	return func(e *Email) {
		if client != nil {
			e.client.HTTPClient = client
		}
	}
}

// NewEmail creates the Postmark-backed email sender.
func NewEmail(cfg EmailConfig, opts ...EmailOption) (*Email, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("%w: FromEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.FromEmail) {
		return nil, fmt.Errorf("%w: FromEmail must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	client.HTTPClient = defaultHTTPClient()

	e := &Email{client: client, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Supports implements notify.Sender.
func (e *Email) Supports(channel notify.Channel) bool {
	return channel == notify.ChannelEmail
}

// Send delivers one email and returns Postmark's message id.
func (e *Email) Send(ctx context.Context, msg notify.Message) (string, error) {
	if msg.RecipientEmail == "" {
		return "", fmt.Errorf("%w: recipient email is required", notify.ErrValidation)
	}
	if !emailRegex.MatchString(msg.RecipientEmail) {
		return "", fmt.Errorf("%w: recipient email %q is malformed", notify.ErrValidation, msg.RecipientEmail)
	}

	resp, err := e.client.SendEmail(ctx, postmark.Email{
		From:     e.cfg.FromEmail,
		ReplyTo:  e.cfg.ReplyTo,
		To:       msg.RecipientEmail,
		Subject:  msg.Title,
		TextBody: msg.Body,
	})
	if err != nil {
		return "", transientErr("postmark", err)
	}
	if resp.ErrorCode > 0 {
		return "", fmt.Errorf("%w: postmark error %d: %s", notify.ErrPermanentProvider, resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}
