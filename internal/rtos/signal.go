// internal/rtos/signal.go

package rtos

import "tickrt/internal/kernel"

// WakeState tracks one object's interrupt signalling between Prepare and
// Finalize.
type WakeState uint8

const (
	NotPrepared WakeState = iota
	PreparedNoWake
	PreparedWakePending
)

func (s WakeState) String() string {
	switch s {
	case NotPrepared:
		return "not-prepared"
	case PreparedNoWake:
		return "prepared"
	case PreparedWakePending:
		return "wake-pending"
	default:
		return "unknown"
	}
}

// ISRSignal batches the yield decision of one interrupt handler for one
// object. Only one handler may use a given ISRSignal at a time.
type ISRSignal struct {
	state WakeState
}

// Prepare clears the wake flag. Call it once on interrupt entry.
func (s *ISRSignal) Prepare() {
	s.state = PreparedNoWake
}

// Signal runs one kernel FromISR operation and records whether it woke a
// task that outranks the interrupted one.
func (s *ISRSignal) Signal(op func(woken *bool) bool) bool {
	if debugChecks && s.state == NotPrepared {
		panic("rtos: interrupt signal before prepare")
	}
	var woken bool
	ok := op(&woken)
	if woken {
		s.state = PreparedWakePending
	}
	return ok
}

// Finalize issues a single yield request if any signal woke a task, then
// disarms the signal. Call it last, once.
func (s *ISRSignal) Finalize(k *kernel.Kernel) {
	if debugChecks && s.state == NotPrepared {
		panic("rtos: interrupt finalize before prepare")
	}
	if s.state == PreparedWakePending {
		k.YieldFromISR()
	}
	s.state = NotPrepared
}

// State reports the current phase.
func (s *ISRSignal) State() WakeState { return s.state }
