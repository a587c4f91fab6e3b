package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON messages to the broker. Each publish opens a
// short-lived channel on the shared connection; failures surface to the
// caller unretried.
type Publisher struct {
	conns *ConnManager
}

// NewPublisher creates a publisher bound to the shared connection.
func NewPublisher(conns *ConnManager) *Publisher {
	return &Publisher{conns: conns}
}

// Publish serializes v to JSON and sends it directly to the named queue via
// the default exchange.
func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
	return p.publish(ctx, "", queue, v, nil)
}

// PublishTo serializes v to JSON and sends it to an exchange with the given
// routing key.
func (p *Publisher) PublishTo(ctx context.Context, exchange, routingKey string, v any) error {
	return p.publish(ctx, exchange, routingKey, v, nil)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, v any, headers amqp.Table) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := p.conns.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	})
}
