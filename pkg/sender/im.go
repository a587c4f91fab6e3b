package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// IMConfig holds the instant-messaging provider settings. The endpoint
// follows the LINE Notify contract: a form POST authenticated with the
// recipient's personal access token.
type IMConfig struct {
	BaseURL string `env:"IM_BASE_URL,required"`
}

// IM delivers notifications to an instant-messaging provider.
type IM struct {
	cfg        IMConfig
	httpClient *http.Client
}

// IMOption configures the IM sender.
type IMOption func(*IM)

// WithIMHTTPClient overrides the HTTP client used for API calls.
func WithIMHTTPClient(client *http.Client) IMOption {
	return func(i *IM) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// NewIM creates the instant-messaging sender.
func NewIM(cfg IMConfig, opts ...IMOption) (*IM, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}

	i := &IM{cfg: cfg, httpClient: defaultHTTPClient()}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Supports implements notify.Sender.
func (i *IM) Supports(channel notify.Channel) bool {
	return channel == notify.ChannelIM
}

// Send delivers one IM message. The provider returns no message id; the
// request id header is passed through when present.
func (i *IM) Send(ctx context.Context, msg notify.Message) (string, error) {
	if msg.IMToken == "" {
		return "", fmt.Errorf("%w: im token is required", notify.ErrValidation)
	}

	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + text
	}

	form := url.Values{}
	form.Set("message", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.BaseURL+"/api/notify", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build im request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+msg.IMToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", transientErr("im", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return "", statusErr("im", resp.StatusCode, string(respBody))
	}

	return resp.Header.Get("X-Request-Id"), nil
}
