package capacity

import (
	"context"
	"fmt"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
)

// Acquire blocks until a slot is free, then borrows it.
func (cl *capacityLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for {
		cl.mu.Lock()
		if cl.borrowed < cl.total {
			cl.borrowed++
			cl.mu.Unlock()
			return nil
		}
		ready := make(chan struct{})
		cl.waiters = append(cl.waiters, ready)
		cl.mu.Unlock()

		select {
		case <-ready:
			// Re-check: a SetTotal may have shrunk the ceiling since the
			// signal was sent.
		case <-ctx.Done():
			cl.cancelWait(ready)
			return ctx.Err()
		}
	}
}

// TryAcquire borrows a slot without blocking, reporting success.
func (cl *capacityLimiter) TryAcquire() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.borrowed < cl.total {
		cl.borrowed++
		return true
	}
	return false
}

// Release frees one borrowed slot, waking the oldest waiter if any.
func (cl *capacityLimiter) Release() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.borrowed == 0 {
		return fmt.Errorf("capacity: %w", gperrors.ErrExcessRelease)
	}
	cl.borrowed--
	cl.wakeLocked()
	return nil
}

// SetTotal changes the ceiling for future acquisitions.
func (cl *capacityLimiter) SetTotal(total int) error {
	if total <= 0 {
		return fmt.Errorf("capacity: total must be positive, got %d", total)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	old := cl.total
	cl.total = total
	if total > old {
		// Newly freed headroom: wake as many waiters as fit.
		for i := old; i < total && len(cl.waiters) > 0; i++ {
			cl.wakeLocked()
		}
	}
	return nil
}

// Total returns the configured ceiling.
func (cl *capacityLimiter) Total() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.total
}

// Borrowed returns the number of currently borrowed slots.
func (cl *capacityLimiter) Borrowed() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.borrowed
}

// Waiting returns the number of callers blocked in Acquire.
func (cl *capacityLimiter) Waiting() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.waiters)
}

// wakeLocked signals the oldest waiter. Must be called with cl.mu held.
func (cl *capacityLimiter) wakeLocked() {
	if len(cl.waiters) > 0 {
		close(cl.waiters[0])
		cl.waiters = cl.waiters[1:]
	}
}

// cancelWait removes a canceled waiter, forwarding an already-consumed
// signal so a freed slot is never lost.
func (cl *capacityLimiter) cancelWait(ready chan struct{}) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for i, w := range cl.waiters {
		if w == ready {
			cl.waiters = append(cl.waiters[:i], cl.waiters[i+1:]...)
			return
		}
	}
	cl.wakeLocked()
}
