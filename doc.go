/*
Package gopace provides client-side admission control and rate limiting for
dispatching outbound API calls under concurrency, request-rate, and
resource-token budgets.

Rate Limiting (pkg/ratelimit):
  - bucket: Token bucket rate limiter with lazy refill and wait-time reservations
  - capacity: Control concurrent in-flight operations
  - endpoint: Per-endpoint keyed limiter registry
  - adaptive: Rate adjustment from provider response headers

Dispatch (pkg/queue, pkg/workqueue, pkg/executor):
  - queue: Bounded FIFO queue with backpressure and a closeable lifecycle
  - workqueue: Fixed worker loops over a bounded queue
  - executor: Composes the queue, capacity limiter, and rate limiters into a
    single submit-and-observe contract

Observability (pkg/event, pkg/metrics, pkg/reporter, pkg/sink):
  - event: Request lifecycle state machine with timestamps and logs
  - metrics: Prometheus instrumentation
  - reporter: Scheduled stats sampling
  - sink: Archival of finished request events

Example usage:

	import (
		"context"

		"github.com/vnykmshr/gopace/pkg/executor"
	)

	exec, _ := executor.New(executor.Config{ConcurrencyLimit: 4, RequestsRate: 10})
	exec.Start()
	defer exec.Stop(context.Background())

	evt, _ := exec.Submit(context.Background(), executor.Request{Call: call})
	// poll or wait on evt until it reaches a terminal status
*/
package gopace
