package kernel

import "runtime"

// Semaphore is a counting semaphore; a maximum of 1 makes it binary.
type Semaphore struct {
	k       *Kernel
	count   uint32
	max     uint32
	waiters waitList
}

// NewSemaphore creates a semaphore holding initial units out of max.
func (k *Kernel) NewSemaphore(max, initial uint32) *Semaphore {
	if max == 0 {
		max = 1
	}
	if max > MaxCount {
		max = MaxCount
	}
	if initial > max {
		initial = max
	}
	return &Semaphore{k: k, count: initial, max: max, waiters: newWaitList()}
}

// Take consumes one unit, blocking up to timeout ticks.
func (s *Semaphore) Take(timeout Ticks) bool {
	k := s.k
	k.mu.Lock()
	cur := k.current()
	k.touch(cur, CallFrameWords)
	if s.count > 0 {
		s.count--
		k.mu.Unlock()
		return true
	}
	if timeout == 0 {
		k.mu.Unlock()
		return false
	}

	w := k.newWaiter(cur, nil, "semaphore")
	k.park(w, &s.waiters, timeout)
	return w.ok
}

// Give adds one unit or hands it straight to the highest priority waiter.
// It reports false when the semaphore is already full.
func (s *Semaphore) Give() bool {
	k := s.k
	k.mu.Lock()
	cur := k.current()
	woke, ok := s.give()
	preempt := woke != nil && woke.prio > cur.prio
	k.mu.Unlock()

	if preempt {
		runtime.Gosched()
	}
	return ok
}

// GiveFromISR is Give for interrupt context.
func (s *Semaphore) GiveFromISR(woken *bool) bool {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	interrupted := k.isrEnter()
	woke, ok := s.give()
	markWoken(woken, woke, interrupted)
	return ok
}

func (s *Semaphore) give() (*Handle, bool) {
	if w := s.waiters.pop(); w != nil {
		s.k.release(w, true)
		return w.t, true
	}
	if s.count >= s.max {
		return nil, false
	}
	s.count++
	return nil, true
}

// Count returns the units currently available.
func (s *Semaphore) Count() uint32 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.count
}

func (s *Semaphore) Max() uint32 { return s.max }

// Waiting returns the number of blocked takers.
func (s *Semaphore) Waiting() int {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.waiters.len()
}
