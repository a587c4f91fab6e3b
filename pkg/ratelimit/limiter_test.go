package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

func newTestLimiter(t *testing.T, rules map[string]ratelimit.Rule) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
	t.Helper()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	limiter, err := ratelimit.NewLimiter(store, rules)
	require.NoError(t, err)
	return limiter, store
}

func TestNewLimiter_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()

		_, err := ratelimit.NewLimiter(nil, ratelimit.DefaultRules())
		assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)
	})

	t.Run("invalid rule", func(t *testing.T) {
		t.Parallel()

		store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
		defer store.Close()

		_, err := ratelimit.NewLimiter(store, map[string]ratelimit.Rule{
			"email": {Limit: 0, Window: time.Minute},
		})
		assert.ErrorIs(t, err, ratelimit.ErrInvalidRule)
	})
}

func TestLimiter_AllowedDoesNotIncrement(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, map[string]ratelimit.Rule{
		"sms": {Limit: 2, Window: time.Minute},
	})
	ctx := context.Background()

	// Repeated checks without Record never exhaust the limit.
	for i := 0; i < 10; i++ {
		ok, err := limiter.Allowed(ctx, "user:1", "sms")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	remaining, err := limiter.Remaining(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestLimiter_LimitExceeded(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, map[string]ratelimit.Rule{
		"email": {Limit: 3, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allowed(ctx, "user:1", "email")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, limiter.Record(ctx, "user:1", "email"))
	}

	ok, err := limiter.Allowed(ctx, "user:1", "email")
	require.NoError(t, err)
	assert.False(t, ok, "fourth request within the window must be rejected")

	remaining, err := limiter.Remaining(ctx, "user:1", "email")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// A different subject is unaffected.
	ok, err = limiter.Allowed(ctx, "user:2", "email")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_WindowReset(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, map[string]ratelimit.Rule{
		"sms": {Limit: 1, Window: 50 * time.Millisecond},
	})
	ctx := context.Background()

	require.NoError(t, limiter.Record(ctx, "user:1", "sms"))

	ok, err := limiter.Allowed(ctx, "user:1", "sms")
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(60 * time.Millisecond)

	ok, err = limiter.Allowed(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.True(t, ok, "counter must expire with the window")
}

func TestLimiter_UnknownChannel(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.DefaultRules())

	_, err := limiter.Allowed(context.Background(), "user:1", "fax")
	assert.ErrorIs(t, err, ratelimit.ErrUnknownChannel)

	err = limiter.Record(context.Background(), "user:1", "fax")
	assert.ErrorIs(t, err, ratelimit.ErrUnknownChannel)
}

func TestLimiter_EmptyKey(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, ratelimit.DefaultRules())

	_, err := limiter.Allowed(context.Background(), "", "email")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

type failingStore struct{}

func (failingStore) IncrementAndGet(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Get(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestLimiter_StoreUnavailableDeniesRequest(t *testing.T) {
	t.Parallel()

	limiter, err := ratelimit.NewLimiter(failingStore{}, ratelimit.DefaultRules())
	require.NoError(t, err)

	ok, err := limiter.Allowed(context.Background(), "user:1", "email")
	assert.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
	assert.False(t, ok, "store failure must never fail open")
}

func TestLimiter_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, map[string]ratelimit.Rule{
		"push": {Limit: 1000, Window: time.Minute},
	})
	ctx := context.Background()

	const workers = 50
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, limiter.Record(ctx, "user:1", "push"))
			}
		}()
	}
	wg.Wait()

	remaining, err := limiter.Remaining(ctx, "user:1", "push")
	require.NoError(t, err)
	assert.Equal(t, 1000-workers*perWorker, remaining, "increments must not be lost under concurrency")
}
