// Package dispatch provides a generic in-process worker pool with an
// unbounded FIFO buffer. Producers enqueue without blocking; a fixed set of
// workers drains the buffer concurrently.
//
// Stop closes intake and waits until every buffered and in-flight item has
// been processed, so accepted work is never dropped on shutdown. Handlers
// run with a context detached from the pool lifecycle for the same reason.
//
//	pool, err := dispatch.NewPool(func(ctx context.Context, msg notify.Message) error {
//		return svc.Send(ctx, msg)
//	}, dispatch.WithWorkers(10))
//	if err != nil {
//		return err
//	}
//
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop()
//
//	_ = pool.Enqueue(msg)
package dispatch
