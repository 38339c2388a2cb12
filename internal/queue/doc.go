// Package queue provides a generic FIFO queue with an optional capacity
// bound and explicit completion tracking.
//
// An item moves through two phases. It is pending from Put until a consumer
// takes it with Get, and outstanding from Get until the consumer settles it
// with Acknowledge (completed) or Reject (dropped). The queue is settled
// when nothing is pending and nothing is outstanding; WaitSettled blocks
// until that holds.
//
// # Basic Usage
//
//	q := queue.New[string](2)
//
//	_ = q.Put(ctx, "a")          // blocks while the queue is full
//	if err := q.PutNowait("b"); errors.Is(err, queue.ErrQueueFull) {
//	    // caller decides
//	}
//
//	item, err := q.Get(ctx)      // blocks while the queue is empty
//	if err == nil && handle(item) {
//	    _ = q.Acknowledge()
//	} else {
//	    _ = q.Reject()
//	}
//
//	_ = q.WaitSettled(ctx)
//
// Every blocking call takes a context and wakes up through channel
// broadcasts, so no call ever polls.
package queue
