package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
)

// Options carries the request details captured when an event is created.
// All fields are optional.
type Options struct {
	// EndpointURL is the target of the call, kept for auditing.
	EndpointURL string

	// Method is the request method or verb.
	Method string

	// Headers are the outbound request headers.
	Headers map[string]string

	// Payload is the outbound request body.
	Payload any

	// ConsumptionCost is the number of API tokens the call consumes, when
	// token-based throttling is in effect.
	ConsumptionCost float64

	// Metadata holds arbitrary caller data carried alongside the event.
	Metadata map[string]any
}

// RequestEvent is the observable record of one dispatched request. It is
// safe for concurrent use: the dispatcher writes to it while callers read.
type RequestEvent struct {
	mu sync.Mutex

	requestID string
	status    Status

	endpointURL     string
	method          string
	requestHeaders  map[string]string
	payload         any
	consumptionCost float64

	responseStatusCode int
	responseHeaders    map[string]string
	responseBody       any

	errorType    string
	errorMessage string
	errorDetails string

	createdAt           time.Time
	updatedAt           time.Time
	queuedAt            time.Time
	processingStartedAt time.Time
	callStartedAt       time.Time
	completedAt         time.Time

	logs     []string
	metadata map[string]any

	done chan struct{}
}

// New creates a RequestEvent in the PENDING state with a fresh request ID.
func New(opts Options) *RequestEvent {
	now := time.Now()
	ev := &RequestEvent{
		requestID:       uuid.NewString(),
		status:          StatusPending,
		endpointURL:     opts.EndpointURL,
		method:          opts.Method,
		requestHeaders:  opts.Headers,
		payload:         opts.Payload,
		consumptionCost: opts.ConsumptionCost,
		metadata:        opts.Metadata,
		createdAt:       now,
		updatedAt:       now,
		done:            make(chan struct{}),
	}
	if ev.metadata == nil {
		ev.metadata = make(map[string]any)
	}
	return ev
}

// RequestID returns the unique identifier of this request.
func (e *RequestEvent) RequestID() string {
	return e.requestID
}

// Status returns the current lifecycle state.
func (e *RequestEvent) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// UpdateStatus advances the event to next. Moving backwards returns
// ErrInvalidTransition and mutating a terminal event returns
// ErrEventTerminal; setting the current status again is a no-op.
func (e *RequestEvent) UpdateStatus(next Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateStatusLocked(next)
}

func (e *RequestEvent) updateStatusLocked(next Status) error {
	if next == e.status {
		return nil
	}
	if e.status.Terminal() {
		return fmt.Errorf("event %s: %w", e.requestID, gperrors.ErrEventTerminal)
	}
	if next.rank() < 0 || next.rank() < e.status.rank() {
		return fmt.Errorf("event %s: %s -> %s: %w",
			e.requestID, e.status, next, gperrors.ErrInvalidTransition)
	}

	now := time.Now()
	e.addLogLocked(now, fmt.Sprintf("Status changed from %s to %s", e.status, next))
	e.status = next
	e.updatedAt = now

	// Phase timestamps are recorded exactly once, on first entry.
	switch next {
	case StatusQueued:
		e.queuedAt = now
	case StatusProcessing:
		e.processingStartedAt = now
	case StatusCalling:
		e.callStartedAt = now
	case StatusCompleted, StatusFailed, StatusCancelled:
		e.completedAt = now
		close(e.done)
	}
	return nil
}

// SetResult records a successful response and moves the event to COMPLETED.
func (e *RequestEvent) SetResult(statusCode int, headers map[string]string, body any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return fmt.Errorf("event %s: %w", e.requestID, gperrors.ErrEventTerminal)
	}
	e.responseStatusCode = statusCode
	e.responseHeaders = headers
	e.responseBody = body
	e.addLogLocked(time.Now(), fmt.Sprintf("Call completed with status code: %d", statusCode))
	return e.updateStatusLocked(StatusCompleted)
}

// SetError records a call failure and moves the event to FAILED. The error
// type, message and unwrap chain are captured for later inspection.
func (e *RequestEvent) SetError(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return fmt.Errorf("event %s: %w", e.requestID, gperrors.ErrEventTerminal)
	}
	e.errorType = fmt.Sprintf("%T", err)
	e.errorMessage = err.Error()
	e.errorDetails = causeChain(err)
	e.addLogLocked(time.Now(), fmt.Sprintf("Call failed: %s - %s", e.errorType, e.errorMessage))
	return e.updateStatusLocked(StatusFailed)
}

// Cancel moves the event to CANCELLED. Cancelling an already terminal event
// returns ErrEventTerminal.
func (e *RequestEvent) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return fmt.Errorf("event %s: %w", e.requestID, gperrors.ErrEventTerminal)
	}
	return e.updateStatusLocked(StatusCancelled)
}

// AddLog appends a timestamped line to the event log.
func (e *RequestEvent) AddLog(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addLogLocked(time.Now(), msg)
}

func (e *RequestEvent) addLogLocked(ts time.Time, msg string) {
	e.logs = append(e.logs, fmt.Sprintf("%s - %s", ts.Format(time.RFC3339), msg))
}

// Logs returns a copy of the event log lines in order.
func (e *RequestEvent) Logs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.logs))
	copy(out, e.logs)
	return out
}

// Result returns the recorded response. The boolean is false until the
// event has completed successfully.
func (e *RequestEvent) Result() (statusCode int, headers map[string]string, body any, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusCompleted {
		return 0, nil, nil, false
	}
	return e.responseStatusCode, e.responseHeaders, e.responseBody, true
}

// ErrorType returns the Go type of the recorded failure, or "" if none.
func (e *RequestEvent) ErrorType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorType
}

// ErrorMessage returns the message of the recorded failure, or "" if none.
func (e *RequestEvent) ErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorMessage
}

// ErrorDetails returns the unwrap chain of the recorded failure, outermost
// first, or "" if none.
func (e *RequestEvent) ErrorDetails() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorDetails
}

// EndpointURL returns the target of the call as captured at submission.
func (e *RequestEvent) EndpointURL() string {
	return e.endpointURL
}

// Method returns the request method as captured at submission.
func (e *RequestEvent) Method() string {
	return e.method
}

// ConsumptionCost returns the API token cost captured at submission.
func (e *RequestEvent) ConsumptionCost() float64 {
	return e.consumptionCost
}

// Metadata returns a copy of the caller metadata attached to the event.
func (e *RequestEvent) Metadata() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

// CreatedAt returns when the event was created.
func (e *RequestEvent) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt returns when the event last changed.
func (e *RequestEvent) UpdatedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updatedAt
}

// Done returns a channel that is closed once the event reaches a terminal
// state.
func (e *RequestEvent) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the event is terminal or the context is cancelled, and
// returns the final status.
func (e *RequestEvent) Wait(ctx context.Context) (Status, error) {
	select {
	case <-e.done:
		return e.Status(), nil
	case <-ctx.Done():
		return e.Status(), ctx.Err()
	}
}

// causeChain renders the unwrap chain of err, outermost first.
func causeChain(err error) string {
	var parts []string
	for err != nil {
		parts = append(parts, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, ": caused by: ")
}
