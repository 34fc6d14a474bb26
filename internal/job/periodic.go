package job

import (
	"sync/atomic"

	"tickrt/internal/rtos"
)

// Periodic calls fn every periodMS milliseconds. The sub-tick remainder is
// carried between periods, so the average rate matches periodMS even when
// it is not a multiple of the tick period.
type Periodic struct {
	periodMS uint32
	fn       func(c *rtos.Context) bool
	rem      uint32
	runs     atomic.Uint64
}

// NewPeriodic returns a runner that calls fn and then sleeps one period. The
// task ends when fn returns false.
func NewPeriodic(periodMS uint32, fn func(c *rtos.Context) bool) *Periodic {
	return &Periodic{periodMS: periodMS, fn: fn}
}

func (p *Periodic) Run(c *rtos.Context) bool {
	p.runs.Add(1)
	if !p.fn(c) {
		return false
	}
	c.MSleepCarry(p.periodMS, &p.rem)
	return true
}

// Runs returns how many times fn has been called.
func (p *Periodic) Runs() uint64 { return p.runs.Load() }
