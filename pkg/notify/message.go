package notify

import (
	"fmt"

	"github.com/google/uuid"
)

// Message is the transient, in-process request to deliver one notification.
type Message struct {
	UserID   uuid.UUID `json:"user_id"`
	Channel  Channel   `json:"channel"`
	Priority Priority  `json:"priority"`

	// Literal content, overridden by a rendered template when TemplateCode
	// and Placeholders are present and the rendered values are non-empty.
	Title string `json:"title"`
	Body  string `json:"body"`

	TemplateCode string            `json:"template_code,omitempty"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
	Language     string            `json:"language,omitempty"`

	// Channel-specific recipient addressing. Exactly one is required,
	// matching the channel.
	RecipientEmail string `json:"recipient_email,omitempty"`
	RecipientPhone string `json:"recipient_phone,omitempty"`
	DeviceToken    string `json:"device_token,omitempty"`
	IMToken        string `json:"im_token,omitempty"`

	// Data is an optional structured payload forwarded to the provider
	// (push data, webhook body) and persisted with the notification.
	Data map[string]any `json:"data,omitempty"`

	// CallbackURL, when set, receives a best-effort webhook with the
	// delivery outcome.
	CallbackURL string `json:"callback_url,omitempty"`
}

// Validate checks the channel and its required recipient field. It runs
// before any persistence or network call so invalid messages leave no trace.
func (m Message) Validate() error {
	if !m.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, m.Channel)
	}

	switch m.Channel {
	case ChannelEmail:
		if m.RecipientEmail == "" {
			return fmt.Errorf("%w: recipient email is required", ErrValidation)
		}
	case ChannelSMS:
		if m.RecipientPhone == "" {
			return fmt.Errorf("%w: recipient phone is required", ErrValidation)
		}
	case ChannelPush:
		if m.DeviceToken == "" {
			return fmt.Errorf("%w: device token is required", ErrValidation)
		}
	case ChannelIM:
		if m.IMToken == "" {
			return fmt.Errorf("%w: im token is required", ErrValidation)
		}
	}
	return nil
}

// language returns the template language, defaulting to English.
func (m Message) language() string {
	if m.Language == "" {
		return "en"
	}
	return m.Language
}
