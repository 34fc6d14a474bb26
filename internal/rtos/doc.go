// Package rtos wraps the kernel's task, queue, mutex and semaphore objects
// with lifecycle safety, millisecond timeouts that carry their sub-tick
// remainder, and the interrupt signalling convention.
//
// # Timeouts
//
// The kernel only wakes tasks on tick boundaries. Every timed call comes in
// two forms: a plain one that truncates milliseconds to whole ticks, and a
// Carry form that takes a caller-owned remainder:
//
//	var rem uint32
//	for {
//		c.MSleepCarry(10, &rem) // 15 ms ticks: sleeps 0, 1, 1, 0, 1, 1, ...
//	}
//
// The remainder accumulates the milliseconds the tick truncation would have
// dropped, so repeated short waits keep pace with wall time. When an event
// ends a Carry wait before its timeout, the remainder is reset to zero.
//
// # Interrupt handlers
//
// Objects that can be signalled from an interrupt expose a triad that must be
// called in order, once per interrupt:
//
//	q.PreparePushFromInterrupt()
//	q.PushFromInterrupt(a)
//	q.PushFromInterrupt(b)
//	q.FinalizePushFromInterrupt()
//
// Finalize yields at most once however many tasks the signals woke. Build
// with -tags rtosdebug to panic on out-of-order calls.
package rtos
