package workqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/metrics"
	"github.com/vnykmshr/gopace/pkg/queue"
)

const (
	// DefaultCapacity is the queue capacity used when Config.Capacity is zero.
	DefaultCapacity = 100

	// DefaultWorkers is the worker count used when Config.Workers is zero.
	DefaultWorkers = 5
)

// Handler processes one dequeued item. The context is cancelled when the
// pool is force-stopped.
type Handler[T any] func(ctx context.Context, item T) error

// Config configures a WorkQueue.
type Config struct {
	// Capacity is the bounded queue size. Defaults to DefaultCapacity.
	Capacity int

	// Workers is the number of concurrent workers. Defaults to DefaultWorkers.
	Workers int

	// Name labels this queue in logs and metrics. Defaults to "workqueue".
	Name string

	// Logger receives worker lifecycle and failure logs.
	// Defaults to a disabled logger.
	Logger *zerolog.Logger

	// Metrics configures Prometheus instrumentation.
	Metrics metrics.Config
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	QueueDepth int
	Capacity   int
	Workers    int
	Active     int
	Processed  uint64
	Failed     uint64
	Queue      queue.Stats
}

// WorkQueue dispatches queued items to a fixed pool of workers.
type WorkQueue[T any] struct {
	queue   *queue.Bounded[T]
	handler Handler[T]
	workers int
	name    string
	log     zerolog.Logger
	reg     *metrics.Registry

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	wg        sync.WaitGroup
	active    atomic.Int64
	processed atomic.Uint64
	failed    atomic.Uint64
	bpSeen    atomic.Uint64
}

// New creates a WorkQueue with the given capacity and worker count.
func New[T any](capacity, workers int, handler Handler[T]) (*WorkQueue[T], error) {
	return NewWithConfig(Config{Capacity: capacity, Workers: workers}, handler)
}

// NewWithConfig creates a WorkQueue from cfg. The pool does not run until
// Start is called.
func NewWithConfig[T any](cfg Config, handler Handler[T]) (*WorkQueue[T], error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Name == "" {
		cfg.Name = "workqueue"
	}
	if err := validation.ValidatePositive("workqueue", "workers", cfg.Workers); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, gperrors.NewValidationError("workqueue", "handler", nil, "cannot be nil")
	}

	q, err := queue.New[T](cfg.Capacity)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("queue", cfg.Name).Logger()
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = cfg.Metrics.Resolve()
	}

	return &WorkQueue[T]{
		queue:   q,
		handler: handler,
		workers: cfg.Workers,
		name:    cfg.Name,
		log:     log,
		reg:     reg,
	}, nil
}

// Start launches the worker goroutines. Starting twice, or after Stop, is
// an error; a pool cannot be restarted.
func (w *WorkQueue[T]) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("workqueue %s already started", w.name)
	}
	if w.stopped {
		return fmt.Errorf("workqueue %s: %w", w.name, gperrors.ErrClosed)
	}
	w.started = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(w.workers)
	for i := 0; i < w.workers; i++ {
		go w.run(ctx, i)
	}
	w.log.Debug().Int("workers", w.workers).Msg("work queue started")
	return nil
}

// Put enqueues item, blocking while the queue is full. It fails with
// ErrClosed once Stop has been called.
func (w *WorkQueue[T]) Put(ctx context.Context, item T) error {
	if err := w.queue.Put(ctx, item); err != nil {
		return err
	}
	w.observeQueue()
	if w.reg != nil {
		w.reg.QueueEnqueued.WithLabelValues(w.name).Inc()
	}
	return nil
}

// TryPut enqueues item without blocking, reporting whether it was accepted.
func (w *WorkQueue[T]) TryPut(item T) (bool, error) {
	ok, err := w.queue.TryPut(item)
	if ok {
		w.observeQueue()
		if w.reg != nil {
			w.reg.QueueEnqueued.WithLabelValues(w.name).Inc()
		}
	}
	return ok, err
}

// Process enqueues every item in items, stopping at the first failure.
func (w *WorkQueue[T]) Process(ctx context.Context, items []T) error {
	for _, item := range items {
		if err := w.Put(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Stop closes the intake and waits for workers to drain the queue. If ctx
// is cancelled before the drain finishes, in-flight handlers are cancelled,
// workers join immediately, and the context error is returned. Remaining
// items can then be collected with Drain.
func (w *WorkQueue[T]) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	cancel := w.cancel
	w.mu.Unlock()

	w.queue.Close()
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Debug().Msg("work queue drained and stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		w.log.Warn().Int("remaining", w.queue.Len()).Msg("work queue force-stopped")
		return ctx.Err()
	}
}

// Drain removes and returns all items still queued. It is intended for use
// after a forced Stop, so callers can account for work that never ran.
func (w *WorkQueue[T]) Drain() []T {
	var out []T
	for {
		item, ok, err := w.queue.TryGet()
		if !ok || err != nil {
			return out
		}
		out = append(out, item)
	}
}

// Len returns the number of items currently queued.
func (w *WorkQueue[T]) Len() int {
	return w.queue.Len()
}

// Stats returns a snapshot of pool activity.
func (w *WorkQueue[T]) Stats() Stats {
	return Stats{
		QueueDepth: w.queue.Len(),
		Capacity:   w.queue.Cap(),
		Workers:    w.workers,
		Active:     int(w.active.Load()),
		Processed:  w.processed.Load(),
		Failed:     w.failed.Load(),
		Queue:      w.queue.Stats(),
	}
}

// run is the main loop of one worker. It exits when the queue is closed and
// empty, or when the pool context is cancelled.
func (w *WorkQueue[T]) run(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		// A force-stopped pool must not keep draining queued items, so the
		// context is checked before Get, which favors items over cancellation.
		if ctx.Err() != nil {
			return
		}
		item, err := w.queue.Get(ctx)
		if err != nil {
			return
		}
		w.observeQueue()
		if w.reg != nil {
			w.reg.QueueDequeued.WithLabelValues(w.name).Inc()
		}
		w.handle(ctx, id, item)
	}
}

func (w *WorkQueue[T]) handle(ctx context.Context, id int, item T) {
	w.active.Add(1)
	defer w.active.Add(-1)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
		if err != nil {
			w.failed.Add(1)
			w.log.Error().Err(err).Int("worker", id).Msg("handler failed")
			return
		}
		w.processed.Add(1)
	}()

	err = w.handler(ctx, item)
}

func (w *WorkQueue[T]) observeQueue() {
	if w.reg == nil {
		return
	}
	w.reg.QueueDepth.WithLabelValues(w.name).Set(float64(w.queue.Len()))

	// The queue counts backpressure internally; export the delta since the
	// last observation so the counter stays monotonic.
	bp := w.queue.Stats().Backpressure
	for {
		seen := w.bpSeen.Load()
		if bp <= seen {
			return
		}
		if w.bpSeen.CompareAndSwap(seen, bp) {
			w.reg.QueueBackpressure.WithLabelValues(w.name).Add(float64(bp - seen))
			return
		}
	}
}
