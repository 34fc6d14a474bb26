package rtos

import "tickrt/internal/kernel"

// Queue is a fixed-capacity FIFO of T. Push and pop wakes from interrupts
// are tracked separately.
type Queue[T any] struct {
	k    *kernel.Kernel
	q    *kernel.Queue[T]
	push ISRSignal
	pop  ISRSignal
}

// NewQueue creates a queue of the given capacity. The buffer is allocated
// once and never resized.
func NewQueue[T any](k *kernel.Kernel, capacity int) *Queue[T] {
	return &Queue[T]{k: k, q: kernel.NewQueue[T](k, capacity)}
}

// Push appends item, blocking until there is room.
func (q *Queue[T]) Push(item T) {
	q.q.Send(item, kernel.MaxDelay)
}

// PushTimeout appends item, waiting up to ms milliseconds for room.
func (q *Queue[T]) PushTimeout(item T, ms uint32) bool {
	return q.q.Send(item, ticksFor(ms, q.k.TickPeriod()))
}

// PushCarry is PushTimeout with the sub-tick remainder carried in *rem.
func (q *Queue[T]) PushCarry(item T, ms uint32, rem *uint32) bool {
	return settle(q.q.Send(item, ticksCarry(ms, rem, q.k.TickPeriod())), rem)
}

// Pop removes the oldest item, blocking until there is one.
func (q *Queue[T]) Pop() (T, bool) {
	return q.q.Receive(kernel.MaxDelay)
}

// PopTimeout removes the oldest item, waiting up to ms milliseconds. The
// item is the zero value when ok is false.
func (q *Queue[T]) PopTimeout(ms uint32) (T, bool) {
	return q.q.Receive(ticksFor(ms, q.k.TickPeriod()))
}

// PopCarry is PopTimeout with the sub-tick remainder carried in *rem.
func (q *Queue[T]) PopCarry(ms uint32, rem *uint32) (T, bool) {
	item, ok := q.q.Receive(ticksCarry(ms, rem, q.k.TickPeriod()))
	return item, settle(ok, rem)
}

func (q *Queue[T]) PreparePushFromInterrupt() { q.push.Prepare() }

// PushFromInterrupt appends item without blocking. It reports false when the
// queue is full.
func (q *Queue[T]) PushFromInterrupt(item T) bool {
	return q.push.Signal(func(woken *bool) bool {
		return q.q.SendFromISR(item, woken)
	})
}

func (q *Queue[T]) FinalizePushFromInterrupt() { q.push.Finalize(q.k) }

func (q *Queue[T]) PreparePopFromInterrupt() { q.pop.Prepare() }

// PopFromInterrupt removes the oldest item without blocking.
func (q *Queue[T]) PopFromInterrupt() (T, bool) {
	var item T
	ok := q.pop.Signal(func(woken *bool) bool {
		var ok bool
		item, ok = q.q.ReceiveFromISR(woken)
		return ok
	})
	return item, ok
}

func (q *Queue[T]) FinalizePopFromInterrupt() { q.pop.Finalize(q.k) }

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.q.Len() }

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return q.q.Cap() }
