package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes a single delivery body. A nil return acknowledges the
// message; an error triggers the retry policy. Handlers must be idempotent
// since delivery is at-least-once.
type Handler func(ctx context.Context, body []byte) error

// republisher sends the retried copy of a delivery back to the queue.
// *amqp.Channel satisfies it; tests substitute a recording fake.
type republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer subscribes to one queue and processes deliveries sequentially.
// On handler failure it retries with exponential backoff up to the retry
// budget, then dead-letters the message.
type Consumer struct {
	conns   *ConnManager
	queue   string
	handler Handler
	cfg     Config
	backoff func(retryCount int) time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger. Defaults to slog.Default().
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConsumerBackoff overrides the retry backoff schedule. Tests use this
// to avoid real sleeps.
func WithConsumerBackoff(fn func(retryCount int) time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// NewConsumer creates a consumer for the named queue.
func NewConsumer(conns *ConnManager, cfg Config, queue string, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	c := &Consumer{
		conns:   conns,
		queue:   queue,
		handler: handler,
		cfg:     cfg,
		backoff: BackoffDelay,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start launches the consume loop in a background goroutine. It returns an
// error if the consumer is already running or the initial subscription fails.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrConsumerAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	ch, deliveries, err := c.subscribe()
	if err != nil {
		cancel()
		return err
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go c.run(runCtx, ch, deliveries)

	return nil
}

// Stop cancels the consume loop and waits for in-flight processing to finish.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrConsumerNotStarted
	}
	cancel, done := c.cancel, c.done
	c.started = false
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Run starts the consumer and blocks until ctx is cancelled, then stops it.
// Designed for use with errgroup.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Consumer) subscribe() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conns.Channel()
	if err != nil {
		return nil, nil, err
	}

	// Prefetch is the only backpressure: the broker holds further deliveries
	// once this many are unacknowledged.
	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos on %q: %w", c.queue, err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %q: %w", c.queue, err)
	}

	return ch, deliveries, nil
}

func (c *Consumer) run(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	defer func() { ch.Close() }()

	c.logger.InfoContext(ctx, "consumer started", slog.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "consumer stopped", slog.String("queue", c.queue))
			return
		case d, ok := <-deliveries:
			if !ok {
				// The channel or connection dropped. Unacked deliveries are
				// redelivered by the broker; resubscribe and continue.
				if ctx.Err() != nil {
					return
				}
				newCh, newDeliveries, err := c.resubscribe(ctx)
				if err != nil {
					return
				}
				ch.Close()
				ch, deliveries = newCh, newDeliveries
				continue
			}
			c.process(ctx, ch, d)
		}
	}
}

// resubscribe retries the subscription until it succeeds or ctx is cancelled.
func (c *Consumer) resubscribe(ctx context.Context) (*amqp.Channel, <-chan amqp.Delivery, error) {
	const wait = 5 * time.Second

	for {
		ch, deliveries, err := c.subscribe()
		if err == nil {
			c.logger.InfoContext(ctx, "consumer resubscribed", slog.String("queue", c.queue))
			return ch, deliveries, nil
		}

		c.logger.ErrorContext(ctx, "resubscribe failed",
			slog.String("queue", c.queue),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// process runs the handler for one delivery and applies the retry policy on
// failure. Handler panics are contained and treated as failures.
func (c *Consumer) process(ctx context.Context, pub republisher, d amqp.Delivery) {
	err := c.invoke(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.ErrorContext(ctx, "ack failed",
				slog.String("queue", c.queue),
				slog.Any("error", ackErr))
		}
		return
	}

	c.handleFailure(ctx, pub, d, err)
}

func (c *Consumer) invoke(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, body)
}

// handleFailure republishes the message with an incremented retry counter
// after an exponential backoff, or dead-letters it once the budget is spent.
// The backoff wait intentionally blocks this consumer's loop so a struggling
// downstream is not hammered by the remaining prefetched deliveries.
func (c *Consumer) handleFailure(ctx context.Context, pub republisher, d amqp.Delivery, cause error) {
	retryCount := RetryCount(d.Headers)

	if retryCount >= c.cfg.MaxRetryCount {
		c.logger.ErrorContext(ctx, "retry budget exhausted, dead-lettering",
			slog.String("queue", c.queue),
			slog.String("message_id", d.MessageId),
			slog.Int("retry_count", retryCount),
			slog.Any("error", cause))

		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.ErrorContext(ctx, "nack failed",
				slog.String("queue", c.queue),
				slog.Any("error", nackErr))
		}
		return
	}

	delay := c.backoff(retryCount)
	c.logger.WarnContext(ctx, "handler failed, scheduling retry",
		slog.String("queue", c.queue),
		slog.String("message_id", d.MessageId),
		slog.Int("retry_count", retryCount),
		slog.Duration("delay", delay),
		slog.Any("error", cause))

	select {
	case <-ctx.Done():
		// Shutting down mid-backoff: leave the delivery unacked so the
		// broker redelivers it with the same retry count.
		return
	case <-time.After(delay):
	}

	retried := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Headers:      retryHeaders(d.Headers, retryCount+1, cause.Error()),
		Body:         d.Body,
	}

	if err := pub.PublishWithContext(ctx, "", c.queue, false, false, retried); err != nil {
		c.logger.ErrorContext(ctx, "retry republish failed",
			slog.String("queue", c.queue),
			slog.Any("error", err))
		// Without a successful republish the original must survive; requeue
		// it as-is.
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.ErrorContext(ctx, "nack failed",
				slog.String("queue", c.queue),
				slog.Any("error", nackErr))
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.ErrorContext(ctx, "ack after republish failed",
			slog.String("queue", c.queue),
			slog.Any("error", ackErr))
	}
}
