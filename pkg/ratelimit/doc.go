// Package ratelimit provides fixed-window rate limiting over a shared counter store.
//
// Counters are keyed by (channel, subject) and live in an external store so
// limits hold across service replicas. Each channel has a fixed (limit,
// window) pair; requests are counted per window and the counter expires when
// the window elapses. This is a fixed-window counter, not a sliding window,
// so bursts at window boundaries are tolerated.
//
// # Basic Usage
//
// Create a limiter backed by Redis:
//
//	store := ratelimit.NewRedisStore(redisClient)
//	limiter, err := ratelimit.NewLimiter(store, ratelimit.DefaultRules())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ok, err := limiter.Allowed(ctx, "user:123", "email")
//	if err != nil {
//		// Store unavailable - treat as denial, never fail open.
//		return err
//	}
//	if !ok {
//		// Limit exceeded.
//		return errRateLimited
//	}
//
//	// ... perform the send ...
//
//	_ = limiter.Record(ctx, "user:123", "email")
//
// Allowed never increments. Record is called after a successful send so
// rejected or failed attempts do not consume quota.
//
// # Stores
//
// RedisStore increments atomically (INCR + EXPIRE in one pipeline) and is
// the production backend. MemoryStore is a process-local equivalent for
// tests and development. An absent counter always means zero usage, never
// unlimited quota.
package ratelimit
