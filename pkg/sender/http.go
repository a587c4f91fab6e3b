package sender

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const defaultTimeout = 30 * time.Second

// defaultHTTPClient bounds every provider call. Providers that hang past the
// timeout surface as transient failures.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// transientErr wraps a network-level failure so the caller retries it.
func transientErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", notify.ErrTransientProvider, provider, err)
}

// statusErr classifies a provider HTTP status: 5xx and 429 are transient,
// every other non-2xx is a permanent rejection.
func statusErr(provider string, status int, body string) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s responded %d: %s", notify.ErrTransientProvider, provider, status, body)
	}
	return fmt.Errorf("%w: %s responded %d: %s", notify.ErrPermanentProvider, provider, status, body)
}
