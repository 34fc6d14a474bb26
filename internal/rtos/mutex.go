package rtos

import "tickrt/internal/kernel"

// Mutex guards state shared between tasks. The kernel raises a holder's
// priority while a higher priority task waits for it. Not for interrupt use.
type Mutex struct {
	k *kernel.Kernel
	m *kernel.Mutex
}

func NewMutex(k *kernel.Kernel) *Mutex {
	return &Mutex{k: k, m: k.NewMutex()}
}

// Lock blocks until the mutex is acquired.
func (m *Mutex) Lock() {
	m.m.Lock(kernel.MaxDelay)
}

// LockTimeout waits up to ms milliseconds for the mutex.
func (m *Mutex) LockTimeout(ms uint32) bool {
	return m.m.Lock(ticksFor(ms, m.k.TickPeriod()))
}

// LockCarry is LockTimeout with the sub-tick remainder carried in *rem.
func (m *Mutex) LockCarry(ms uint32, rem *uint32) bool {
	return settle(m.m.Lock(ticksCarry(ms, rem, m.k.TickPeriod())), rem)
}

// Unlock releases the mutex. Only the holder may call it.
func (m *Mutex) Unlock() {
	m.m.Unlock()
}
