package ratelimit

import (
	"context"
	"time"
)

// Rule defines a fixed (limit, window) pair for one channel.
type Rule struct {
	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Window is the length of the counting window. The counter expires
	// once the window elapses, resetting usage to zero.
	Window time.Duration
}

func (r Rule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// DefaultRules returns the per-channel delivery limits used in production.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"email": {Limit: 100, Window: time.Minute},
		"sms":   {Limit: 10, Window: time.Minute},
		"push":  {Limit: 500, Window: time.Minute},
		"im":    {Limit: 1000, Window: time.Hour},
	}
}

// Store defines the interface for counter storage backends.
// Implementations must increment atomically; a read-modify-write across two
// calls is not acceptable under concurrent workers.
type Store interface {
	// IncrementAndGet atomically increments the counter for the given key
	// and returns the new value. The TTL is (re)set to the window whenever
	// the key does not yet exist.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, error)

	// Get returns the current counter value. A missing key reads as zero.
	Get(ctx context.Context, key string) (int64, error)

	// Delete removes the given key from the store.
	Delete(ctx context.Context, key string) error
}
