package queue

import (
	"context"
	"sync"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
	"github.com/vnykmshr/gopace/pkg/common/validation"
)

// Stats holds counters describing queue activity.
type Stats struct {
	// Enqueued is the total number of items accepted by Put.
	Enqueued uint64

	// Dequeued is the total number of items handed out by Get.
	Dequeued uint64

	// Backpressure is the number of Put calls that had to block on a full queue.
	Backpressure uint64
}

// Bounded is a fixed-capacity FIFO queue with blocking Put and Get.
//
// Items are owned by the queue from Put until a Get hands them to exactly
// one consumer. Ordering is strict FIFO with no reordering or priority.
type Bounded[T any] struct {
	mu         sync.Mutex
	items      []T
	capacity   int
	closed     bool
	putWaiters []chan struct{}
	getWaiters []chan struct{}
	stats      Stats
}

// New creates a bounded queue with the given capacity.
func New[T any](capacity int) (*Bounded[T], error) {
	if err := validation.ValidatePositive("queue", "capacity", capacity); err != nil {
		return nil, err
	}
	return &Bounded[T]{
		capacity: capacity,
		items:    make([]T, 0, capacity),
	}, nil
}

// Put appends item to the queue. It blocks while the queue is at capacity
// and open, and fails with ErrClosed if the queue is closed at call time or
// while waiting. It fails with the context error if ctx is canceled first.
func (q *Bounded[T]) Put(ctx context.Context, item T) error {
	blocked := false
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return gperrors.ErrClosed
		}
		if len(q.items) < q.capacity {
			q.items = append(q.items, item)
			q.stats.Enqueued++
			q.wakeGetterLocked()
			q.mu.Unlock()
			return nil
		}
		if !blocked {
			blocked = true
			q.stats.Backpressure++
		}
		ready := make(chan struct{})
		q.putWaiters = append(q.putWaiters, ready)
		q.mu.Unlock()

		select {
		case <-ready:
			// Re-check under the lock; another producer may have won the slot.
		case <-ctx.Done():
			q.cancelPutWait(ready)
			return ctx.Err()
		}
	}
}

// TryPut appends item without blocking. It reports whether the item was
// accepted, and fails with ErrClosed on a closed queue.
func (q *Bounded[T]) TryPut(item T) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, gperrors.ErrClosed
	}
	if len(q.items) >= q.capacity {
		q.stats.Backpressure++
		return false, nil
	}
	q.items = append(q.items, item)
	q.stats.Enqueued++
	q.wakeGetterLocked()
	return true, nil
}

// Get removes and returns the oldest item. It blocks while the queue is
// empty and open, and fails with ErrClosed once the queue is both closed
// and empty. Remaining items on a closed queue are still drained in order.
func (q *Bounded[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.stats.Dequeued++
			q.wakePutterLocked()
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, gperrors.ErrClosed
		}
		ready := make(chan struct{})
		q.getWaiters = append(q.getWaiters, ready)
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			q.cancelGetWait(ready)
			return zero, ctx.Err()
		}
	}
}

// TryGet removes the oldest item without blocking. It reports whether an
// item was available, and fails with ErrClosed once closed and empty.
func (q *Bounded[T]) TryGet() (T, bool, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.stats.Dequeued++
		q.wakePutterLocked()
		return item, true, nil
	}
	if q.closed {
		return zero, false, gperrors.ErrClosed
	}
	return zero, false, nil
}

// Close marks the queue closed and wakes every blocked caller. It is
// idempotent. Items already queued remain available to Get.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for _, w := range q.putWaiters {
		close(w)
	}
	q.putWaiters = nil
	for _, w := range q.getWaiters {
		close(w)
	}
	q.getWaiters = nil
}

// Len returns the current number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int {
	return q.capacity
}

// IsFull reports whether the queue is at capacity.
func (q *Bounded[T]) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.capacity
}

// IsEmpty reports whether the queue holds no items.
func (q *Bounded[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Closed reports whether Close has been called.
func (q *Bounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Stats returns a snapshot of the queue counters.
func (q *Bounded[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// wakeGetterLocked signals the oldest waiting consumer, if any.
// Must be called with q.mu held.
func (q *Bounded[T]) wakeGetterLocked() {
	if len(q.getWaiters) > 0 {
		close(q.getWaiters[0])
		q.getWaiters = q.getWaiters[1:]
	}
}

// wakePutterLocked signals the oldest waiting producer, if any.
// Must be called with q.mu held.
func (q *Bounded[T]) wakePutterLocked() {
	if len(q.putWaiters) > 0 {
		close(q.putWaiters[0])
		q.putWaiters = q.putWaiters[1:]
	}
}

// cancelPutWait removes a canceled producer from the waiter list. If the
// producer was already signaled, the signal is forwarded to the next waiter
// so a freed slot is never lost.
func (q *Bounded[T]) cancelPutWait(ready chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !removeWaiterLocked(&q.putWaiters, ready) {
		q.wakePutterLocked()
	}
}

// cancelGetWait removes a canceled consumer from the waiter list, forwarding
// an already-consumed signal so a queued item is never stranded.
func (q *Bounded[T]) cancelGetWait(ready chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !removeWaiterLocked(&q.getWaiters, ready) {
		q.wakeGetterLocked()
	}
}

// removeWaiterLocked removes ready from waiters, reporting whether it was
// still registered. Must be called with q.mu held.
func removeWaiterLocked(waiters *[]chan struct{}, ready chan struct{}) bool {
	for i, w := range *waiters {
		if w == ready {
			*waiters = append((*waiters)[:i], (*waiters)[i+1:]...)
			return true
		}
	}
	return false
}
