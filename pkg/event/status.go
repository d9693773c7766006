package event

// Status describes where a dispatched request is in its lifecycle.
type Status string

// Possible states of a dispatched request.
const (
	// StatusPending is the initial state: the event exists but the task is
	// not yet queued.
	StatusPending Status = "PENDING"

	// StatusQueued means the task sits in the work queue.
	StatusQueued Status = "QUEUED"

	// StatusProcessing means a worker claimed the task and is waiting for
	// capacity and rate budgets.
	StatusProcessing Status = "PROCESSING"

	// StatusCalling means the call is in flight.
	StatusCalling Status = "CALLING"

	// StatusCompleted means the call finished successfully.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed means the call raised an error.
	StatusFailed Status = "FAILED"

	// StatusCancelled means the task was cancelled before producing a result.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// rank orders statuses along the lifecycle so transitions can be checked
// for monotonicity. Terminal states share a rank: exactly one is reachable.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusQueued:
		return 1
	case StatusProcessing:
		return 2
	case StatusCalling:
		return 3
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 4
	}
	return -1
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
