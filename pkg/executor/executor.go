package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/event"
	"github.com/vnykmshr/gopace/pkg/metrics"
	"github.com/vnykmshr/gopace/pkg/ratelimit/bucket"
	"github.com/vnykmshr/gopace/pkg/ratelimit/capacity"
	"github.com/vnykmshr/gopace/pkg/sink"
	"github.com/vnykmshr/gopace/pkg/workqueue"
)

// Response is the successful outcome of a submitted call.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// Call is the unit of work submitted to the executor. The context is
// cancelled if the executor is force-stopped while the call is in flight.
type Call func(ctx context.Context) (*Response, error)

// Request describes one submission.
type Request struct {
	// Call is the operation to run. Required.
	Call Call

	// ConsumptionCost is the number of API tokens this call debits from
	// the consumption bucket, when one is configured. Ignored otherwise.
	ConsumptionCost float64

	// Metadata is carried on the returned event, untouched.
	Metadata map[string]any

	// EndpointURL, Method, Headers and Payload describe the outbound
	// request for auditing. All optional; the executor never reads them.
	EndpointURL string
	Method      string
	Headers     map[string]string
	Payload     any
}

// Stats is a point-in-time view of executor activity, for reporters.
type Stats struct {
	Name    string
	Running bool

	Queue workqueue.Stats

	CapacityTotal    int
	CapacityBorrowed int
	CapacityWaiting  int

	RequestTokens    float64
	APITokens        float64
	APITokensEnabled bool

	Submitted uint64
	Completed uint64
	Failed    uint64
	Cancelled uint64
}

// task pairs a call with the event tracking it. The queue owns the task
// from Submit until a worker claims it.
type task struct {
	call  Call
	event *event.RequestEvent
	cost  float64
}

// Executor admits submitted calls through a capacity ceiling and one or two
// token buckets, running them on a fixed worker pool.
type Executor struct {
	name string
	log  zerolog.Logger
	reg  *metrics.Registry
	sink sink.EventSink

	wq       *workqueue.WorkQueue[*task]
	capacity capacity.Limiter
	requests bucket.Limiter
	tokens   bucket.Limiter // nil when consumption accounting is disabled

	cancelPendingOnStop bool

	mu       sync.Mutex
	running  bool
	stopped  bool
	draining atomic.Bool

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

// New creates an Executor from cfg. The executor does not accept
// submissions until Start is called.
func New(cfg Config) (*Executor, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("executor", cfg.Name).Logger()
	}

	capLimiter, err := capacity.NewWithMetrics(cfg.ConcurrencyLimit, cfg.Name, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	requests, err := bucket.NewWithMetrics(bucket.Config{
		Rate:      cfg.RequestsRate,
		Period:    cfg.RequestsPeriod,
		MaxTokens: cfg.RequestsMaxTokens,
		Clock:     cfg.Clock,
	}, cfg.Name+"_requests", cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var tokens bucket.Limiter
	if cfg.APITokensRate > 0 {
		tokens, err = bucket.NewWithMetrics(bucket.Config{
			Rate:      cfg.APITokensRate,
			Period:    cfg.APITokensPeriod,
			MaxTokens: cfg.APITokensMaxTokens,
			Clock:     cfg.Clock,
		}, cfg.Name+"_api_tokens", cfg.Metrics)
		if err != nil {
			return nil, err
		}
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = cfg.Metrics.Resolve()
	}

	e := &Executor{
		name:                cfg.Name,
		log:                 log,
		reg:                 reg,
		sink:                cfg.Sink,
		capacity:            capLimiter,
		requests:            requests,
		tokens:              tokens,
		cancelPendingOnStop: cfg.CancelPendingOnStop,
	}

	wq, err := workqueue.NewWithConfig(workqueue.Config{
		Capacity: cfg.QueueCapacity,
		Workers:  cfg.Workers,
		Name:     cfg.Name,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	}, e.process)
	if err != nil {
		return nil, err
	}
	e.wq = wq

	return e, nil
}

// Start launches the worker pool. Starting a running executor is a no-op;
// an executor cannot be restarted after Stop.
func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	if e.stopped {
		return fmt.Errorf("executor %s: %w", e.name, gperrors.ErrNotRunning)
	}
	if err := e.wq.Start(); err != nil {
		return err
	}
	e.running = true
	e.log.Info().Msg("executor started")
	return nil
}

// Submit wraps req into a task, enqueues it and returns its event
// immediately. The caller observes progress by polling the event or
// blocking on its Wait. Submit fails with ErrNotRunning before Start or
// after Stop, and blocks while the queue is full.
func (e *Executor) Submit(ctx context.Context, req Request) (*event.RequestEvent, error) {
	if req.Call == nil {
		return nil, gperrors.NewValidationError("executor", "call", nil, "cannot be nil")
	}
	if err := validation.ValidateNonNegative("executor", "consumptionCost", req.ConsumptionCost); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("executor %s: %w", e.name, gperrors.ErrNotRunning)
	}
	e.mu.Unlock()

	ev := event.New(event.Options{
		EndpointURL:     req.EndpointURL,
		Method:          req.Method,
		Headers:         req.Headers,
		Payload:         req.Payload,
		ConsumptionCost: req.ConsumptionCost,
		Metadata:        req.Metadata,
	})
	t := &task{call: req.Call, event: ev, cost: req.ConsumptionCost}

	if err := ev.UpdateStatus(event.StatusQueued); err != nil {
		return nil, err
	}
	if err := e.wq.Put(ctx, t); err != nil {
		if errors.Is(err, gperrors.ErrClosed) {
			return nil, fmt.Errorf("executor %s: %w", e.name, gperrors.ErrNotRunning)
		}
		return nil, err
	}

	e.submitted.Add(1)
	if e.reg != nil {
		e.reg.TasksSubmitted.WithLabelValues(e.name).Inc()
	}
	e.log.Debug().Str("request_id", ev.RequestID()).Msg("task submitted")
	return ev, nil
}

// Stop closes the intake and shuts the worker pool down. On the graceful
// path queued tasks drain through the workers: they complete normally, or
// are cancelled when CancelPendingOnStop is set. Cancelling ctx forces the
// shutdown instead, cancelling in-flight calls and marking everything still
// queued as CANCELLED. Stop is idempotent.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.stopped = true
	e.mu.Unlock()

	if e.cancelPendingOnStop {
		e.draining.Store(true)
	}

	err := e.wq.Stop(ctx)
	for _, t := range e.wq.Drain() {
		e.cancelTask(t)
	}

	e.log.Info().
		Uint64("completed", e.completed.Load()).
		Uint64("failed", e.failed.Load()).
		Uint64("cancelled", e.cancelled.Load()).
		Msg("executor stopped")
	return err
}

// Stats returns a snapshot of executor activity.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	s := Stats{
		Name:             e.name,
		Running:          running,
		Queue:            e.wq.Stats(),
		CapacityTotal:    e.capacity.Total(),
		CapacityBorrowed: e.capacity.Borrowed(),
		CapacityWaiting:  e.capacity.Waiting(),
		RequestTokens:    e.requests.Tokens(),
		Submitted:        e.submitted.Load(),
		Completed:        e.completed.Load(),
		Failed:           e.failed.Load(),
		Cancelled:        e.cancelled.Load(),
	}
	if e.tokens != nil {
		s.APITokensEnabled = true
		s.APITokens = e.tokens.Tokens()
	}
	return s
}

// SetConcurrencyLimit changes the capacity ceiling at runtime. Lowering it
// never revokes slots already borrowed.
func (e *Executor) SetConcurrencyLimit(total int) error {
	return e.capacity.SetTotal(total)
}

// process is the worker step for one dequeued task: admission through the
// three gates, then the call itself.
func (e *Executor) process(ctx context.Context, t *task) error {
	ev := t.event

	if e.draining.Load() || ctx.Err() != nil {
		e.cancelTask(t)
		return nil
	}

	_ = ev.UpdateStatus(event.StatusProcessing)
	if e.reg != nil {
		e.reg.WorkersActive.WithLabelValues(e.name).Inc()
		defer e.reg.WorkersActive.WithLabelValues(e.name).Dec()
	}
	admitStart := time.Now()

	if err := e.capacity.Acquire(ctx); err != nil {
		e.cancelTask(t)
		return err
	}
	defer func() {
		if err := e.capacity.Release(); err != nil {
			e.log.Error().Err(err).Msg("capacity release failed")
		}
	}()
	ev.AddLog("Acquired concurrency slot")

	if err := e.requests.Wait(ctx); err != nil {
		e.cancelTask(t)
		return err
	}
	ev.AddLog("Acquired request rate limit token")

	if e.tokens != nil && t.cost > 0 {
		if err := e.tokens.WaitN(ctx, t.cost); err != nil {
			e.cancelTask(t)
			return err
		}
		ev.AddLog(fmt.Sprintf("Acquired API token rate limit (%g tokens)", t.cost))
	}

	if e.reg != nil {
		e.reg.AdmissionLatency.WithLabelValues(e.name).Observe(time.Since(admitStart).Seconds())
	}

	_ = ev.UpdateStatus(event.StatusCalling)
	callStart := time.Now()
	resp, err := invoke(ctx, t.call)
	if e.reg != nil {
		e.reg.CallDuration.WithLabelValues(e.name).Observe(time.Since(callStart).Seconds())
	}

	if err != nil {
		_ = ev.SetError(err)
		e.failed.Add(1)
		if e.reg != nil {
			e.reg.TasksFailed.WithLabelValues(e.name).Inc()
		}
		e.log.Debug().Str("request_id", ev.RequestID()).Err(err).Msg("task failed")
	} else {
		_ = ev.SetResult(resp.StatusCode, resp.Headers, resp.Body)
		e.completed.Add(1)
		if e.reg != nil {
			e.reg.TasksCompleted.WithLabelValues(e.name).Inc()
		}
		e.log.Debug().
			Str("request_id", ev.RequestID()).
			Int("status_code", resp.StatusCode).
			Msg("task completed")
	}

	e.record(ev)
	return err
}

// cancelTask marks a task CANCELLED and accounts for it. Safe to call on a
// task whose event is already terminal.
func (e *Executor) cancelTask(t *task) {
	if err := t.event.Cancel(); err != nil {
		return
	}
	e.cancelled.Add(1)
	if e.reg != nil {
		e.reg.TasksCancelled.WithLabelValues(e.name).Inc()
	}
	e.record(t.event)
}

// record hands a terminal event to the sink, if one is configured. The
// write runs on the worker with its own deadline so a slow sink cannot
// wedge shutdown.
func (e *Executor) record(ev *event.RequestEvent) {
	if e.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.sink.Record(ctx, ev.Snapshot()); err != nil {
		e.log.Error().Err(err).Str("request_id", ev.RequestID()).Msg("event sink write failed")
	}
}

// invoke runs the call, converting a panic into an error so one bad call
// cannot take down a worker.
func invoke(ctx context.Context, call Call) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("call panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
	}()

	resp, err = call(ctx)
	if err == nil && resp == nil {
		err = fmt.Errorf("call returned neither a response nor an error")
	}
	return resp, err
}

// With creates an executor from cfg, starts it, runs fn against it, and
// stops it on the way out, draining gracefully.
func With(cfg Config, fn func(*Executor) error) (err error) {
	exec, err := New(cfg)
	if err != nil {
		return err
	}
	if err := exec.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := exec.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	err = fn(exec)
	return err
}
