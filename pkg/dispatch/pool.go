package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 10

// Handler processes one buffered item. Errors are logged, not retried; the
// pool delivers each accepted item to the handler exactly once.
type Handler[T any] func(ctx context.Context, item T) error

// Pool is a fixed-size worker pool draining an unbounded FIFO buffer.
type Pool[T any] struct {
	handler Handler[T]
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	buffer  []T
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	workers int
	logger  *slog.Logger
}

// WithWorkers sets the number of workers. Values below one fall back to the
// default.
func WithWorkers(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewPool creates a pool that feeds items to the handler.
func NewPool[T any](handler Handler[T], opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	options := &poolOptions{
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	p := &Pool[T]{
		handler: handler,
		workers: options.workers,
		logger:  options.logger,
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Enqueue adds an item to the buffer without blocking. It fails only after
// Stop has been called.
func (p *Pool[T]) Enqueue(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}

	p.buffer = append(p.buffer, item)
	p.cond.Signal()
	return nil
}

// Len reports the number of buffered, not yet claimed items.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Start launches the workers. Handlers receive a context that inherits the
// values of ctx but not its cancellation, so in-flight work survives
// shutdown.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.stopped = false

	workCtx := context.WithoutCancel(ctx)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.work(workCtx)
	}

	p.logger.InfoContext(ctx, "dispatch pool started", slog.Int("workers", p.workers))
	return nil
}

// Stop closes intake and blocks until the buffer is drained and every
// in-flight item has finished.
func (p *Pool[T]) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	p.logger.Info("dispatch pool stopped")
	return nil
}

// Run starts the pool and returns a function suitable for errgroup: it
// blocks until ctx is cancelled, then drains and stops.
func (p *Pool[T]) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return p.Stop()
	}
}

func (p *Pool[T]) work(ctx context.Context) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.buffer) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.buffer) == 0 {
			p.mu.Unlock()
			return
		}
		item := p.buffer[0]
		p.buffer = p.buffer[1:]
		p.mu.Unlock()

		p.process(ctx, item)
	}
}

// process runs the handler for one item, containing panics.
func (p *Pool[T]) process(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "handler panicked", slog.Any("panic", r))
		}
	}()

	if err := p.handler(ctx, item); err != nil {
		p.logger.ErrorContext(ctx, "handler failed", slog.String("error", fmt.Sprintf("%v", err)))
	}
}
