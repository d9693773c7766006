// Package workqueue runs a fixed pool of workers over a bounded queue.
//
// Producers enqueue items with Put, absorbing backpressure when the queue is
// full; workers pull items in FIFO order and invoke the configured handler.
// Stop closes the intake, lets workers drain what is already queued, and
// joins them; cancelling the Stop context forces an immediate shutdown
// instead.
package workqueue
