package rtos

import "tickrt/internal/kernel"

// Context is the task-local view handed to Runner.Run. Its methods act on
// the running task and must only be called from inside Run.
type Context struct {
	k *kernel.Kernel
	h *kernel.Handle
	r *run
}

// Handle returns the kernel context of the running task.
func (c *Context) Handle() *kernel.Handle { return c.h }

// Kernel returns the kernel the task runs on.
func (c *Context) Kernel() *kernel.Kernel { return c.k }

// StopRequested reports whether Stop has been called for this run. Long Run
// bodies can poll it to return early.
func (c *Context) StopRequested() bool { return c.r.stop.Load() }

// Yield lets peers run without suspending the task.
func (c *Context) Yield() { c.k.Yield() }

// Nap suspends the task for one tick.
func (c *Context) Nap() { c.k.Delay(c.h, 1) }

// MSleep suspends the task for ms milliseconds, truncated to whole ticks.
func (c *Context) MSleep(ms uint32) {
	c.k.Delay(c.h, ticksFor(ms, c.k.TickPeriod()))
}

// MSleepCarry is MSleep with the sub-tick remainder carried in *rem.
func (c *Context) MSleepCarry(ms uint32, rem *uint32) {
	c.k.Delay(c.h, ticksCarry(ms, rem, c.k.TickPeriod()))
}

// Wait consumes one notification, blocking until one arrives.
func (c *Context) Wait() bool {
	return c.k.NotifyTake(c.h, kernel.MaxDelay)
}

// WaitTimeout consumes one notification, blocking up to ms milliseconds.
func (c *Context) WaitTimeout(ms uint32) bool {
	return c.k.NotifyTake(c.h, ticksFor(ms, c.k.TickPeriod()))
}

// WaitCarry is WaitTimeout with the sub-tick remainder carried in *rem.
// A notification that arrives in time resets *rem.
func (c *Context) WaitCarry(ms uint32, rem *uint32) bool {
	return settle(c.k.NotifyTake(c.h, ticksCarry(ms, rem, c.k.TickPeriod())), rem)
}

// Scratch lends fn words of the task's own stack. It reports false when the
// stack has no room, in which case fn is not called.
func (c *Context) Scratch(words int, fn func(buf []uint32)) bool {
	return c.k.Scratch(c.h, words, fn)
}
