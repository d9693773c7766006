// Package event tracks the lifecycle of a single dispatched request.
//
// A RequestEvent is created when a request is submitted and handed back to
// the caller immediately. The dispatcher mutates the event as the task moves
// through its states; callers observe the same event concurrently through
// its accessors, or block on Wait until it reaches a terminal state.
//
// Transitions are monotonic: an event never moves backwards, and once it is
// terminal (COMPLETED, FAILED or CANCELLED) it is immutable.
package event
