package broker

import (
	"errors"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnManager owns the single long-lived AMQP connection. The connection is
// created lazily, shared by all publishers and consumers, and recreated
// transparently once the previous one is closed. Safe for concurrent use.
type ConnManager struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// ConnManagerOption configures a ConnManager.
type ConnManagerOption func(*ConnManager)

// WithConnLogger sets the logger. Defaults to slog.Default().
func WithConnLogger(logger *slog.Logger) ConnManagerOption {
	return func(m *ConnManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewConnManager creates a connection manager. No connection is dialed until
// the first Connection call.
func NewConnManager(cfg Config, opts ...ConnManagerOption) *ConnManager {
	m := &ConnManager{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Connection returns the shared connection, dialing a new one when none
// exists or the cached one is closed. A failed dial returns
// ErrBrokerUnavailable and caches nothing.
func (m *ConnManager) Connection() (*amqp.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}

	conn, err := amqp.DialConfig(m.cfg.URL, amqp.Config{
		Heartbeat: m.cfg.Heartbeat,
		Properties: amqp.Table{
			"connection_name": m.cfg.ConnectionName,
		},
	})
	if err != nil {
		return nil, errors.Join(ErrBrokerUnavailable, err)
	}

	// Surface broker-initiated shutdowns in the logs; the next Connection
	// call dials a fresh connection.
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr := <-closed; amqpErr != nil {
			m.logger.Warn("amqp connection shutdown",
				slog.Int("code", amqpErr.Code),
				slog.String("reason", amqpErr.Reason))
		}
	}()

	m.logger.Info("amqp connection established", slog.String("connection_name", m.cfg.ConnectionName))

	m.conn = conn
	return conn, nil
}

// Channel opens a new channel on the shared connection.
func (m *ConnManager) Channel() (*amqp.Channel, error) {
	conn, err := m.Connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(ErrBrokerUnavailable, err)
	}
	return ch, nil
}

// Close shuts down the shared connection if one exists.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.conn.IsClosed() {
		return nil
	}

	err := m.conn.Close()
	m.conn = nil
	return err
}
