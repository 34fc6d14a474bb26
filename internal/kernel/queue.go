package kernel

import (
	"runtime"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// Queue is a fixed-capacity FIFO of T values. Items are copied in and out.
//
// Blocked receivers only exist while the buffer is empty and blocked senders
// only while it is full, so a send with a waiting receiver hands the item
// over directly and a receive from a full queue refills the freed slot from
// the highest priority waiting sender.
type Queue[T any] struct {
	k         *Kernel
	buf       *circularbuffer.Queue
	capacity  int
	senders   waitList
	receivers waitList
}

// NewQueue creates a queue holding up to capacity items (at least one).
func NewQueue[T any](k *Kernel, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		k:         k,
		buf:       circularbuffer.New(capacity),
		capacity:  capacity,
		senders:   newWaitList(),
		receivers: newWaitList(),
	}
}

// Send appends item, blocking up to timeout ticks while the queue is full.
func (q *Queue[T]) Send(item T, timeout Ticks) bool {
	k := q.k
	k.mu.Lock()
	cur := k.current()
	k.touch(cur, CallFrameWords)
	if woke, ok := q.send(item); ok {
		preempt := woke != nil && woke.prio > cur.prio
		k.mu.Unlock()
		if preempt {
			runtime.Gosched()
		}
		return true
	}
	if timeout == 0 {
		k.mu.Unlock()
		return false
	}

	w := k.newWaiter(cur, item, "queue_send")
	k.park(w, &q.senders, timeout)
	return w.ok
}

// Receive removes the oldest item, blocking up to timeout ticks while the
// queue is empty. On failure the returned item is the zero value.
func (q *Queue[T]) Receive(timeout Ticks) (T, bool) {
	k := q.k
	k.mu.Lock()
	cur := k.current()
	k.touch(cur, CallFrameWords)
	if item, woke, ok := q.receive(); ok {
		preempt := woke != nil && woke.prio > cur.prio
		k.mu.Unlock()
		if preempt {
			runtime.Gosched()
		}
		return item, true
	}
	var zero T
	if timeout == 0 {
		k.mu.Unlock()
		return zero, false
	}

	w := k.newWaiter(cur, nil, "queue_receive")
	k.park(w, &q.receivers, timeout)
	if !w.ok {
		return zero, false
	}
	item, _ := w.item.(T)
	return item, true
}

// SendFromISR is a non-blocking Send for interrupt context.
func (q *Queue[T]) SendFromISR(item T, woken *bool) bool {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	interrupted := k.isrEnter()
	woke, ok := q.send(item)
	markWoken(woken, woke, interrupted)
	return ok
}

// ReceiveFromISR is a non-blocking Receive for interrupt context.
func (q *Queue[T]) ReceiveFromISR(woken *bool) (T, bool) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	interrupted := k.isrEnter()
	item, woke, ok := q.receive()
	markWoken(woken, woke, interrupted)
	return item, ok
}

func (q *Queue[T]) send(item T) (*Handle, bool) {
	if w := q.receivers.pop(); w != nil {
		w.item = item
		q.k.release(w, true)
		return w.t, true
	}
	if q.buf.Full() {
		return nil, false
	}
	q.buf.Enqueue(item)
	return nil, true
}

func (q *Queue[T]) receive() (T, *Handle, bool) {
	v, ok := q.buf.Dequeue()
	if !ok {
		var zero T
		return zero, nil, false
	}
	var woke *Handle
	if w := q.senders.pop(); w != nil {
		q.buf.Enqueue(w.item)
		q.k.release(w, true)
		woke = w.t
	}
	item, _ := v.(T)
	return item, woke, true
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.buf.Size()
}

func (q *Queue[T]) Cap() int { return q.capacity }

// Waiting returns the number of blocked senders and receivers.
func (q *Queue[T]) Waiting() (senders, receivers int) {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.senders.len(), q.receivers.len()
}
