package redis

import "errors"

var (
	// ErrInvalidConnectionURL indicates the connection string could not be
	// parsed.
	ErrInvalidConnectionURL = errors.New("invalid redis connection url")

	// ErrNotReady indicates the server did not answer a ping within the
	// configured retry budget.
	ErrNotReady = errors.New("redis not ready")
)
