package kernel

import "runtime"

// Mutex is a non-recursive lock with priority inheritance: while a task waits,
// the holder runs at least at the waiter's priority.
//
// Inheritance is one level deep. A holder that is itself blocked on another
// mutex does not pass the boost on, and a boosted holder parked on a
// semaphore or queue keeps the wait-list position it had when it parked.
type Mutex struct {
	k       *Kernel
	holder  *Handle
	waiters waitList
}

func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{k: k, waiters: newWaitList()}
}

// Lock acquires m, blocking up to timeout ticks. It must not be called from
// interrupt context.
func (m *Mutex) Lock(timeout Ticks) bool {
	k := m.k
	k.mu.Lock()
	cur := k.current()
	k.touch(cur, CallFrameWords)
	if m.holder == nil {
		m.take(cur)
		k.mu.Unlock()
		return true
	}
	if timeout == 0 {
		k.mu.Unlock()
		return false
	}

	k.inherit(m.holder, cur.prio)
	w := k.newWaiter(cur, nil, "mutex")
	k.park(w, &m.waiters, timeout)
	if !w.ok {
		// the holder may have been boosted on our behalf
		k.mu.Lock()
		if m.holder != nil {
			k.reprioritize(m.holder)
		}
		k.mu.Unlock()
	}
	return w.ok
}

// Unlock releases m and hands it to the highest priority waiter. Ownership
// is not checked.
func (m *Mutex) Unlock() {
	k := m.k
	k.mu.Lock()
	h := m.holder
	if h == nil {
		k.mu.Unlock()
		return
	}
	m.holder = nil
	h.held = dropMutex(h.held, m)
	k.reprioritize(h)

	preempt := false
	if w := m.waiters.pop(); w != nil {
		m.take(w.t)
		k.reprioritize(w.t)
		k.release(w, true)
		preempt = w.t.prio > h.prio
	}
	k.mu.Unlock()

	if preempt {
		runtime.Gosched()
	}
}

// Holder returns the current holder, or nil.
func (m *Mutex) Holder() *Handle {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.holder
}

// Waiting returns the number of blocked lockers.
func (m *Mutex) Waiting() int {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.waiters.len()
}

func (m *Mutex) take(h *Handle) {
	m.holder = h
	h.held = append(h.held, m)
}

func (k *Kernel) inherit(holder *Handle, prio int) {
	if holder.foreign || holder.state == StateDeleted || holder.prio >= prio {
		return
	}
	holder.prio = prio
	k.metrics.inheritances.Inc()
	k.emit(EventInherit, holder)
}

// reprioritize recomputes the effective priority of h from its base priority
// and the top waiter of every mutex it still holds.
func (k *Kernel) reprioritize(h *Handle) {
	if h.foreign {
		return
	}
	p := h.base
	for _, m := range h.held {
		if w := m.waiters.peek(); w != nil && w.t.prio > p {
			p = w.t.prio
		}
	}
	h.prio = p
}

func dropMutex(held []*Mutex, m *Mutex) []*Mutex {
	for i, x := range held {
		if x == m {
			return append(held[:i], held[i+1:]...)
		}
	}
	return held
}
