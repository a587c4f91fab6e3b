package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const fcmDefaultBaseURL = "https://fcm.googleapis.com"

// PushConfig holds the Firebase Cloud Messaging v1 settings.
type PushConfig struct {
	ProjectID string `env:"FCM_PROJECT_ID,required"`
	BaseURL   string `env:"FCM_BASE_URL"`
}

// TokenSource supplies a bearer token for the FCM v1 API. In production this
// is backed by a service-account OAuth2 flow; tests inject a static token.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields the given token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// Push delivers notifications to mobile devices via FCM.
type Push struct {
	cfg        PushConfig
	tokens     TokenSource
	httpClient *http.Client
}

// PushOption configures the Push sender.
type PushOption func(*Push)

// WithPushHTTPClient overrides the HTTP client used for API calls.
func WithPushHTTPClient(client *http.Client) PushOption {
	return func(p *Push) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewPush creates the FCM-backed push sender.
func NewPush(cfg PushConfig, tokens TokenSource, opts ...PushOption) (*Push, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: ProjectID is required", ErrInvalidConfig)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token source is required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fcmDefaultBaseURL
	}

	p := &Push{cfg: cfg, tokens: tokens, httpClient: defaultHTTPClient()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Supports implements notify.Sender.
func (p *Push) Supports(channel notify.Channel) bool {
	return channel == notify.ChannelPush
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification fcmNotification   `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
		Android      *fcmAndroid       `json:"android,omitempty"`
		APNS         *fcmAPNS          `json:"apns,omitempty"`
	} `json:"message"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority string `json:"priority"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers"`
}

// Send delivers one push message and returns the FCM message name.
func (p *Push) Send(ctx context.Context, msg notify.Message) (string, error) {
	if msg.DeviceToken == "" {
		return "", fmt.Errorf("%w: device token is required", notify.ErrValidation)
	}

	token, err := p.tokens(ctx)
	if err != nil {
		return "", transientErr("fcm token source", err)
	}

	var payload fcmMessage
	payload.Message.Token = msg.DeviceToken
	payload.Message.Notification = fcmNotification{Title: msg.Title, Body: msg.Body}
	payload.Message.Data = stringifyData(msg.Data)

	// High and urgent notifications wake the device immediately; normal ones
	// may be batched by the platform.
	if msg.Priority >= notify.PriorityHigh {
		payload.Message.Android = &fcmAndroid{Priority: "high"}
		payload.Message.APNS = &fcmAPNS{Headers: map[string]string{"apns-priority": "10"}}
	} else {
		payload.Message.Android = &fcmAndroid{Priority: "normal"}
		payload.Message.APNS = &fcmAPNS{Headers: map[string]string{"apns-priority": "5"}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal fcm payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", p.cfg.BaseURL, p.cfg.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", transientErr("fcm", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return "", statusErr("fcm", resp.StatusCode, string(respBody))
	}

	var sent struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", fmt.Errorf("%w: fcm response unreadable: %w", notify.ErrPermanentProvider, err)
	}
	return sent.Name, nil
}

// stringifyData flattens the structured payload into the string map FCM
// requires for data messages.
func stringifyData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(encoded)
		}
	}
	return out
}
