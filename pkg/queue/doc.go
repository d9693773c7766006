/*
Package queue provides a bounded FIFO queue with backpressure and a
closeable lifecycle.

Put blocks while the queue is full, Get blocks while it is empty, and both
respect context cancellation. Closing the queue wakes every blocked caller:
producers fail immediately, consumers drain the remaining items and then
fail once the queue is empty.

Example:

	q, err := queue.New[int](64)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		for {
			item, err := q.Get(ctx)
			if err != nil {
				return // queue closed and drained
			}
			process(item)
		}
	}()

	q.Put(ctx, 42)
	q.Close()
*/
package queue
