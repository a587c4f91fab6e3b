package broker

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology declares the exchanges, queues, and bindings the system relies on.
// Declaration is idempotent: re-running against an existing matching topology
// is a no-op, while an argument mismatch fails with ErrTopologyConflict.
type Topology struct {
	conns *ConnManager
	cfg   Config
}

// NewTopology creates a topology declarer bound to the shared connection.
func NewTopology(conns *ConnManager, cfg Config) *Topology {
	return &Topology{conns: conns, cfg: cfg}
}

type queueBinding struct {
	queue    string
	exchange string
	pattern  string
}

// Declare sets up the full topology: the dead-letter exchange and queue
// first, then the events exchange and every work queue with its dead-letter
// and bounding arguments, then the bindings.
func (t *Topology) Declare() error {
	ch, err := t.conns.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil); err != nil {
		return declareErr("exchange", ExchangeDeadLetter, err)
	}
	if err := ch.ExchangeDeclare(ExchangeEvents, "topic", true, false, false, false, nil); err != nil {
		return declareErr("exchange", ExchangeEvents, err)
	}

	// The dead-letter queue itself carries no TTL or length cap so nothing
	// routed to it is ever lost.
	if _, err := ch.QueueDeclare(QueueDeadLetter, true, false, false, false, nil); err != nil {
		return declareErr("queue", QueueDeadLetter, err)
	}
	if err := ch.QueueBind(QueueDeadLetter, PatternAll, ExchangeDeadLetter, false, nil); err != nil {
		return declareErr("binding", QueueDeadLetter, err)
	}

	workArgs := amqp.Table{
		"x-dead-letter-exchange": ExchangeDeadLetter,
		"x-message-ttl":          t.cfg.MessageTTL.Milliseconds(),
		"x-max-length":           int64(t.cfg.MaxQueueLength),
	}

	for _, q := range []string{
		QueueSlipProcessing,
		QueueNotifications,
		QueueEmailNotifications,
		QueuePushNotifications,
		QueueReports,
	} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, workArgs); err != nil {
			return declareErr("queue", q, err)
		}
	}

	bindings := []queueBinding{
		{QueueSlipProcessing, ExchangeEvents, PatternSlip},
		{QueueNotifications, ExchangeEvents, PatternNotification},
		{QueueEmailNotifications, ExchangeEvents, RoutingNotificationEmail},
		{QueuePushNotifications, ExchangeEvents, RoutingNotificationPush},
		{QueueReports, ExchangeEvents, RoutingReportGeneration},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.pattern, b.exchange, false, nil); err != nil {
			return declareErr("binding", b.queue, err)
		}
	}

	return nil
}

func declareErr(kind, name string, err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
		return fmt.Errorf("declare %s %q: %w: %w", kind, name, ErrTopologyConflict, err)
	}
	return fmt.Errorf("declare %s %q: %w", kind, name, err)
}
