package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const (
	twilioDefaultBaseURL = "https://api.twilio.com"

	// Twilio rejects message bodies above this length.
	smsMaxLength = 1600
)

// SMSConfig holds the Twilio credentials and originating number.
type SMSConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID,required"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN,required"`
	FromNumber string `env:"TWILIO_FROM_NUMBER,required"`
	BaseURL    string `env:"TWILIO_BASE_URL"`
}

// SMS delivers notifications over SMS via the Twilio Messages API.
type SMS struct {
	cfg        SMSConfig
	httpClient *http.Client
}

// SMSOption configures the SMS sender.
type SMSOption func(*SMS)

// WithSMSHTTPClient overrides the HTTP client used for API calls.
func WithSMSHTTPClient(client *http.Client) SMSOption {
	return func(s *SMS) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewSMS creates the Twilio-backed SMS sender.
func NewSMS(cfg SMSConfig, opts ...SMSOption) (*SMS, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("%w: AccountSID is required", ErrInvalidConfig)
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("%w: AuthToken is required", ErrInvalidConfig)
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("%w: FromNumber is required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioDefaultBaseURL
	}

	s := &SMS{cfg: cfg, httpClient: defaultHTTPClient()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Supports implements notify.Sender.
func (s *SMS) Supports(channel notify.Channel) bool {
	return channel == notify.ChannelSMS
}

// Send delivers one SMS and returns the Twilio message SID.
func (s *SMS) Send(ctx context.Context, msg notify.Message) (string, error) {
	to, err := normalizePhone(msg.RecipientPhone)
	if err != nil {
		return "", err
	}

	body := msg.Body
	if msg.Title != "" {
		body = msg.Title + "\n" + body
	}
	// Truncate on rune boundaries so multibyte text (Thai bodies) stays
	// valid UTF-8.
	if utf8.RuneCountInString(body) > smsMaxLength {
		body = string([]rune(body)[:smsMaxLength])
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", transientErr("twilio", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", statusErr("twilio", resp.StatusCode, string(respBody))
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("%w: twilio response unreadable: %w", notify.ErrPermanentProvider, err)
	}
	return created.SID, nil
}

// normalizePhone strips formatting characters and requires an E.164-shaped
// result: a leading plus and 7 to 15 digits.
func normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: recipient phone is required", notify.ErrValidation)
	}

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// Formatting only, dropped.
		default:
			return "", fmt.Errorf("%w: phone number %q contains invalid character %q", notify.ErrValidation, raw, r)
		}
	}

	normalized := b.String()
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}

	digits := len(normalized) - 1
	if digits < 7 || digits > 15 {
		return "", fmt.Errorf("%w: phone number %q must have 7 to 15 digits", notify.ErrValidation, raw)
	}
	return normalized, nil
}
