package job

import (
	"sync/atomic"

	"tickrt/internal/rtos"
)

// Sleep is a runner that spends a fixed sleep budget in slices, so a Stop
// lands within one slice. The unspent budget survives a Stop and is used up
// by the next Start.
type Sleep struct {
	slice     uint32
	remaining atomic.Uint32
	rem       uint32
}

// NewSleep returns a runner that sleeps totalMS milliseconds, sliceMS at a
// time.
func NewSleep(totalMS, sliceMS uint32) *Sleep {
	if sliceMS == 0 {
		sliceMS = totalMS
	}
	s := &Sleep{slice: sliceMS}
	s.remaining.Store(totalMS)
	return s
}

func (s *Sleep) Run(c *rtos.Context) bool {
	left := s.remaining.Load()
	if left == 0 {
		return false
	}
	step := min(s.slice, left)
	c.MSleepCarry(step, &s.rem)
	left -= step
	s.remaining.Store(left)
	return left > 0
}

// Remaining returns the unspent budget in milliseconds.
func (s *Sleep) Remaining() uint32 {
	return s.remaining.Load()
}
