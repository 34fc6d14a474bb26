package rtos

import "tickrt/internal/kernel"

// Kind selects how a Semaphore counts posts.
type Kind uint8

const (
	// Binary saturates at one unit.
	Binary Kind = iota
	// Counting accumulates up to kernel.MaxCount units.
	Counting
)

func (k Kind) String() string {
	if k == Binary {
		return "binary"
	}
	return "counting"
}

// Semaphore signals between tasks and from interrupts. It starts empty.
type Semaphore struct {
	k    *kernel.Kernel
	s    *kernel.Semaphore
	kind Kind
	isr  ISRSignal
}

func NewSemaphore(k *kernel.Kernel, kind Kind) *Semaphore {
	max := uint32(1)
	if kind == Counting {
		max = kernel.MaxCount
	}
	return &Semaphore{k: k, s: k.NewSemaphore(max, 0), kind: kind}
}

func (s *Semaphore) Kind() Kind { return s.kind }

// Count returns the units currently available.
func (s *Semaphore) Count() uint32 { return s.s.Count() }

// Wait consumes one unit, blocking until there is one.
func (s *Semaphore) Wait() bool {
	return s.s.Take(kernel.MaxDelay)
}

// WaitTimeout consumes one unit, waiting up to ms milliseconds.
func (s *Semaphore) WaitTimeout(ms uint32) bool {
	return s.s.Take(ticksFor(ms, s.k.TickPeriod()))
}

// WaitCarry is WaitTimeout with the sub-tick remainder carried in *rem.
func (s *Semaphore) WaitCarry(ms uint32, rem *uint32) bool {
	return settle(s.s.Take(ticksCarry(ms, rem, s.k.TickPeriod())), rem)
}

// Post adds one unit, waking the highest priority waiter if there is one.
// A binary semaphore that is already full reports false and stays at one.
func (s *Semaphore) Post() bool {
	return s.s.Give()
}

func (s *Semaphore) PreparePostFromInterrupt() { s.isr.Prepare() }

func (s *Semaphore) PostFromInterrupt() bool {
	return s.isr.Signal(s.s.GiveFromISR)
}

func (s *Semaphore) FinalizePostFromInterrupt() { s.isr.Finalize(s.k) }
