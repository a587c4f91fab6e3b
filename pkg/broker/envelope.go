package broker

import (
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Header names carried on redelivered messages.
const (
	headerRetryCount       = "x-retry-count"
	headerFirstDeathReason = "x-first-death-reason"
)

// RetryCount reads the x-retry-count header from a delivery's headers.
// A missing or unreadable header counts as zero. Brokers and clients encode
// numeric headers with varying integer widths, so all of them are accepted.
func RetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch v := headers[headerRetryCount].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case []byte:
		if n, err := strconv.Atoi(string(v)); err == nil {
			return n
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// FirstDeathReason reads the x-first-death-reason header, recording the
// original failure cause across republish cycles. Empty when unset.
func FirstDeathReason(headers amqp.Table) string {
	if headers == nil {
		return ""
	}
	if s, ok := headers[headerFirstDeathReason].(string); ok {
		return s
	}
	if b, ok := headers[headerFirstDeathReason].([]byte); ok {
		return string(b)
	}
	return ""
}

// BackoffDelay returns the wait before the nth retry: 2^n seconds.
func BackoffDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return time.Duration(1<<uint(retryCount)) * time.Second
}

// retryHeaders builds the headers for a republished delivery, preserving the
// recorded first failure reason.
func retryHeaders(prev amqp.Table, retryCount int, reason string) amqp.Table {
	h := amqp.Table{headerRetryCount: int32(retryCount)}
	if first := FirstDeathReason(prev); first != "" {
		h[headerFirstDeathReason] = first
	} else if reason != "" {
		h[headerFirstDeathReason] = reason
	}
	return h
}
