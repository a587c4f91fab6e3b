package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Limiter enforces per-channel fixed-window limits for arbitrary subjects
// (typically "user:<id>"). It is safe for concurrent use.
type Limiter struct {
	store Store
	rules map[string]Rule
}

// NewLimiter creates a limiter with the given store and channel rules.
func NewLimiter(store Store, rules map[string]Rule) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	for channel, rule := range rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("%w: channel %q", err, channel)
		}
	}
	return &Limiter{store: store, rules: rules}, nil
}

// Allowed reports whether one more request for (key, channel) fits within
// the channel's window. It reads the counter without incrementing it.
func (l *Limiter) Allowed(ctx context.Context, key, channel string) (bool, error) {
	rule, counterKey, err := l.lookup(key, channel)
	if err != nil {
		return false, err
	}

	current, err := l.store.Get(ctx, counterKey)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}

	return current < int64(rule.Limit), nil
}

// Record counts one request against (key, channel). Call it after a
// successful send so failed attempts do not consume quota.
func (l *Limiter) Record(ctx context.Context, key, channel string) error {
	rule, counterKey, err := l.lookup(key, channel)
	if err != nil {
		return err
	}

	if _, err := l.store.IncrementAndGet(ctx, counterKey, rule.Window); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Remaining returns how many requests are left in the current window.
func (l *Limiter) Remaining(ctx context.Context, key, channel string) (int, error) {
	rule, counterKey, err := l.lookup(key, channel)
	if err != nil {
		return 0, err
	}

	current, err := l.store.Get(ctx, counterKey)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	return max(0, rule.Limit-int(current)), nil
}

// Reset clears the counter for (key, channel).
func (l *Limiter) Reset(ctx context.Context, key, channel string) error {
	_, counterKey, err := l.lookup(key, channel)
	if err != nil {
		return err
	}
	return l.store.Delete(ctx, counterKey)
}

func (l *Limiter) lookup(key, channel string) (Rule, string, error) {
	if key == "" {
		return Rule{}, "", ErrKeyRequired
	}
	rule, ok := l.rules[channel]
	if !ok {
		return Rule{}, "", fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return rule, counterKey(key, channel), nil
}

// counterKey builds the store key: "ratelimit:<channel>:<subject>".
func counterKey(key, channel string) string {
	return "ratelimit:" + strings.ToLower(channel) + ":" + key
}
