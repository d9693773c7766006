/*
Package capacity provides a limiter on the number of concurrently active
holders of a resource.

Acquire blocks until a slot is free and returns once the slot is borrowed;
Release frees it. Lowering the ceiling at runtime never revokes borrowed
slots, it only throttles future acquisitions. Waiters are served FIFO.

Example:

	lim, _ := capacity.New(10)

	if err := lim.Acquire(ctx); err != nil {
		return err
	}
	defer lim.Release()
	// ... at most 10 goroutines reach this point concurrently
*/
package capacity
