// Package worker provides a generic pool of goroutines draining a bounded
// queue.
//
// A Pool owns one queue.Queue and a fixed number of workers started by New.
// Each worker takes the next item, hands it to the Handler and settles it:
// a true result acknowledges the item, a false result, a panic or a
// shutdown interruption drops it. Items are never retried; a handler that
// needs retries or a dead-letter log does so itself.
//
// # Basic Usage
//
//	pool, err := worker.New(worker.Sync(func(n int) bool {
//	    fmt.Println(n)
//	    return true
//	}), worker.DefaultPoolConfig())
//	if err != nil {
//	    return err
//	}
//
//	for i := range 100 {
//	    _ = pool.Add(ctx, i)        // blocks while a bounded queue is full
//	}
//	_ = pool.AddNow(100)            // ErrQueueFull instead of blocking
//
//	_ = pool.Finish(ctx, true)      // drain, then stop every worker
//
// # Handlers
//
// Anything implementing Handler can be used. HandlerFunc adapts a function
// that receives the worker context; Sync adapts a plain func(T) bool. The
// worker context is cancelled when the pool shuts down, so long running
// handlers should watch it. A nil handler is refused with
// ErrNotImplemented.
//
// # Shutdown
//
// Finish(ctx, true) waits until no item is pending and none is in flight,
// then cancels the workers and joins them. Finish(ctx, false) skips the
// wait. The pool moves Running -> Draining -> ShuttingDown -> Stopped and
// cannot be restarted.
//
// # Concurrency
//
// At most NumWorkers handler calls run at once. Handlers sharing a
// resource must make it safe for that many concurrent callers.
package worker
