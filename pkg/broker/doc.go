// Package broker provides the AMQP layer: a shared connection manager,
// idempotent topology declaration, a JSON publisher, and a consumer with a
// retry-then-dead-letter policy.
//
// # Topology
//
// One primary topic exchange carries domain events; per-purpose durable
// queues bind to it with routing-key patterns. Every work queue is declared
// with a dead-letter exchange, a message TTL, and a max length so failed or
// abandoned messages cannot accumulate without bound. Declaration is
// idempotent and safe to re-run at startup; a conflicting re-declaration
// (existing queue with different arguments) fails loudly.
//
//	conns := broker.NewConnManager(cfg)
//	defer conns.Close()
//
//	if err := broker.NewTopology(conns, cfg).Declare(); err != nil {
//		log.Fatal(err)
//	}
//
// # Publishing
//
// The publisher serializes payloads to JSON, marks deliveries persistent,
// and stamps a fresh message id and timestamp. It opens a short-lived
// channel per publish and never retries - callers decide.
//
//	pub := broker.NewPublisher(conns)
//	err := pub.Publish(ctx, broker.QueueNotifications, payload)
//
// # Consuming
//
// A Consumer subscribes to one queue and processes deliveries one at a time
// with prefetch as the sole backpressure mechanism. On handler failure it
// reads the x-retry-count header: below the budget it waits 2^n seconds,
// republishes the body with the counter incremented, and acks the original;
// at the budget it nacks without requeue so the broker dead-letters the
// message. The backoff wait deliberately blocks the consumer loop; see the
// design notes.
//
//	consumer, err := broker.NewConsumer(conns, cfg, broker.QueueNotifications, handler)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := consumer.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer consumer.Stop()
//
// Semantics are at-least-once: a disconnect mid-processing leads to broker
// redelivery, and idempotency is left to handlers.
package broker
