package capacity

import (
	"context"
	"sync"

	"github.com/vnykmshr/gopace/pkg/common/validation"
)

// Limiter counts concurrently-active holders against a configurable ceiling.
type Limiter interface {
	// Acquire blocks until a slot is free, then borrows it. It returns an
	// error only if the context is canceled while waiting.
	Acquire(ctx context.Context) error

	// TryAcquire borrows a slot without blocking, reporting success.
	TryAcquire() bool

	// Release frees one borrowed slot. It fails with ErrExcessRelease when
	// called without a matching prior Acquire.
	Release() error

	// SetTotal changes the ceiling. Lowering it does not revoke borrowed
	// slots; it only throttles future acquisitions.
	SetTotal(total int) error

	// Total returns the configured ceiling.
	Total() int

	// Borrowed returns the number of currently borrowed slots.
	Borrowed() int

	// Waiting returns the number of callers blocked in Acquire.
	Waiting() int
}

// capacityLimiter implements Limiter with a FIFO waiter list.
type capacityLimiter struct {
	mu       sync.Mutex
	total    int
	borrowed int
	waiters  []chan struct{}
}

// New creates a capacity limiter with the given ceiling.
func New(total int) (Limiter, error) {
	if err := validation.ValidatePositive("capacity", "total", total); err != nil {
		return nil, err
	}
	return &capacityLimiter{total: total}, nil
}
