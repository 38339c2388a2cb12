package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by PutNowait when a bounded queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed is returned by blocking calls once the queue has been closed.
	ErrClosed = errors.New("queue is closed")
	// ErrNotOutstanding is returned by Acknowledge and Reject when no item
	// taken with Get is waiting to be settled.
	ErrNotOutstanding = errors.New("no outstanding item to settle")
)

// Queue is a FIFO of pending items of type T. It is safe for concurrent use
// by any number of producers and consumers.
type Queue[T any] struct {
	mu          sync.Mutex
	items       []T
	capacity    int
	outstanding int
	completed   uint64
	dropped     uint64
	closed      bool

	// notEmpty and notFull are closed and replaced on every change that
	// may unblock a waiter. settled stays closed while Settled() holds.
	notEmpty      chan struct{}
	notFull       chan struct{}
	settled       chan struct{}
	settledClosed bool
}

// New returns an empty queue. A capacity of zero or less means unbounded.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	settled := make(chan struct{})
	close(settled)
	return &Queue[T]{
		capacity:      capacity,
		notEmpty:      make(chan struct{}),
		notFull:       make(chan struct{}),
		settled:       settled,
		settledClosed: true,
	}
}

func broadcast(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}

// full must be called with mu held.
func (q *Queue[T]) full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

// push must be called with mu held and room available.
func (q *Queue[T]) push(item T) {
	q.items = append(q.items, item)
	if q.settledClosed {
		q.settled = make(chan struct{})
		q.settledClosed = false
	}
	broadcast(&q.notEmpty)
}

// checkSettled must be called with mu held.
func (q *Queue[T]) checkSettled() {
	if !q.settledClosed && len(q.items) == 0 && q.outstanding == 0 {
		close(q.settled)
		q.settledClosed = true
	}
}

// Put appends item to the tail, waiting for room while a bounded queue is
// full. It fails only when ctx ends first or the queue is closed.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if !q.full() {
			q.push(item)
			q.mu.Unlock()
			return nil
		}
		wait := q.notFull
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PutNowait appends item if there is room and returns ErrQueueFull
// otherwise. It never blocks and leaves the queue untouched on failure.
func (q *Queue[T]) PutNowait(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.full() {
		return ErrQueueFull
	}
	q.push(item)
	return nil
}

// Get removes and returns the head item, waiting while the queue is empty.
// The returned item counts as outstanding until Acknowledge or Reject.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.outstanding++
			broadcast(&q.notFull)
			q.mu.Unlock()
			return item, nil
		}
		wait := q.notEmpty
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (q *Queue[T]) settle(counter *uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding == 0 {
		return ErrNotOutstanding
	}
	q.outstanding--
	*counter++
	q.checkSettled()
	return nil
}

// Acknowledge marks one outstanding item as completed.
func (q *Queue[T]) Acknowledge() error {
	return q.settle(&q.completed)
}

// Reject marks one outstanding item as dropped. The item is not requeued.
func (q *Queue[T]) Reject() error {
	return q.settle(&q.dropped)
}

// Settled reports whether no item is pending and none is outstanding.
func (q *Queue[T]) Settled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.outstanding == 0
}

// WaitSettled blocks until Settled reports true or ctx ends.
func (q *Queue[T]) WaitSettled(ctx context.Context) error {
	q.mu.Lock()
	wait := q.settled
	q.mu.Unlock()

	// A settled queue wins over a ctx that is already done.
	select {
	case <-wait:
		return nil
	default:
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close wakes every blocked Put and Get with ErrClosed. Items still pending
// stay counted by Size but are never handed out.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	broadcast(&q.notEmpty)
	broadcast(&q.notFull)
}

// Size returns the number of pending items, excluding outstanding ones.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding returns the number of items taken but not yet settled.
func (q *Queue[T]) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// Capacity returns the bound given to New, zero meaning unbounded.
func (q *Queue[T]) Capacity() int {
	return q.capacity
}

// Completed returns how many items have been acknowledged.
func (q *Queue[T]) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Dropped returns how many items have been rejected.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
