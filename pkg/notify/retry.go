package notify

import (
	"context"
	"time"
)

// attemptBackoff returns the in-call delay before retry attempt n (0-based):
// 2^n seconds.
func attemptBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// scheduleBackoff returns the persisted delay before an external retry of a
// notification that has failed retryCount times before the current failure:
// 2^retryCount minutes.
func scheduleBackoff(retryCount int) time.Duration {
	return time.Duration(1<<retryCount) * time.Minute
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
