// Package executor composes the bounded work queue, the capacity limiter
// and the token-bucket rate limiters into a single submission surface for
// outbound API calls.
//
// Submit wraps a callable into a task, returns its RequestEvent immediately,
// and admits the task through three gates before the call runs: a capacity
// slot, a request-rate token, and (when configured) a consumption-rate debit
// proportional to the task's cost. Results and failures are recorded on the
// event, never returned to the submitter synchronously.
package executor
