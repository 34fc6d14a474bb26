// internal/rtos/task.go

package rtos

import (
	"sync"
	"sync/atomic"

	"tickrt/internal/kernel"
)

// Runner is the work a Task repeats. Run is called in a loop on the task's
// own context until it returns false or a stop is requested.
type Runner interface {
	Run(c *Context) bool
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(c *Context) bool

func (f RunnerFunc) Run(c *Context) bool { return f(c) }

// run is one Start..exit cycle. A late Stop only ever sees the cycle it
// loaded, so it cannot leak into the next Start.
type run struct {
	h      atomic.Pointer[kernel.Handle]
	stop   atomic.Bool
	exited atomic.Bool
	done   chan struct{}
}

// Task owns a fixed stack and runs R on a kernel context between Start and
// the end of its work loop. A Task can be started again once it is inert.
type Task[R Runner] struct {
	k      *kernel.Kernel
	runner R
	stack  *kernel.Stack

	startMu sync.Mutex
	cur     atomic.Pointer[run]
	running atomic.Bool

	notify ISRSignal
}

// NewTask allocates a task with a stack of stackWords words. The stack is
// never resized.
func NewTask[R Runner](k *kernel.Kernel, runner R, stackWords int) *Task[R] {
	if stackWords < kernel.MinStackWords {
		stackWords = kernel.MinStackWords
	}
	return &Task[R]{k: k, runner: runner, stack: kernel.NewStack(stackWords)}
}

// Runner returns the work the task runs.
func (t *Task[R]) Runner() R { return t.runner }

// Start binds the task to a new kernel context at priority, clamped to the
// kernel's range. It fails when the task is already started or the kernel
// cannot bind the context. IsRunning turns true once the loop begins.
func (t *Task[R]) Start(priority int, name string) bool {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	if prev := t.cur.Load(); prev != nil {
		if !prev.exited.Load() {
			return false
		}
		// the previous loop is done and only teardown remains
		<-prev.done
	}

	r := &run{done: make(chan struct{})}
	t.cur.Store(r)
	h, err := t.k.CreateStatic(name, priority, t.stack, func(h *kernel.Handle) {
		t.loop(r, h)
	})
	if err != nil {
		t.cur.Store(nil)
		close(r.done)
		t.k.Logger().Warn("task start failed", "task", name, "priority", priority, "err", err)
		return false
	}
	r.h.CompareAndSwap(nil, h)
	return true
}

func (t *Task[R]) loop(r *run, h *kernel.Handle) {
	r.h.CompareAndSwap(nil, h)
	c := &Context{k: t.k, h: h, r: r}

	t.running.Store(true)
	for !r.stop.Load() {
		if !t.runner.Run(c) {
			break
		}
	}
	r.exited.Store(true)

	t.k.Exit(h)
	r.h.Store(nil)
	t.running.Store(false)
	t.cur.CompareAndSwap(r, nil)
	close(r.done)
}

// Stop asks the work loop to end and blocks until it has. It returns false
// when the task is not started or its loop had already ended. If Run blocks
// forever without a timeout, Stop never returns.
func (t *Task[R]) Stop() bool {
	t.startMu.Lock()
	r := t.cur.Load()
	t.startMu.Unlock()
	if r == nil {
		return false
	}
	live := !r.exited.Load()
	r.stop.Store(true)
	<-r.done
	return live
}

// Close stops the task if it is started.
func (t *Task[R]) Close() {
	t.Stop()
}

// IsRunning reports whether the work loop is currently active.
func (t *Task[R]) IsRunning() bool {
	return t.running.Load()
}

func (t *Task[R]) handle() *kernel.Handle {
	r := t.cur.Load()
	if r == nil {
		return nil
	}
	return r.h.Load()
}

// UsedStackSize returns the deepest stack use in words since Start,
// interrupt frames included. It is 0 while the task is inert.
func (t *Task[R]) UsedStackSize() uint32 {
	h := t.handle()
	if h == nil {
		return 0
	}
	return uint32(t.stack.Size() - t.k.StackHighWaterMark(h))
}

// Post gives the task one notification.
func (t *Task[R]) Post() bool {
	h := t.handle()
	if h == nil {
		return false
	}
	return t.k.NotifyGive(h)
}

func (t *Task[R]) PreparePostFromInterrupt() { t.notify.Prepare() }

// PostFromInterrupt gives the task one notification from an interrupt
// handler, between PreparePostFromInterrupt and FinalizePostFromInterrupt.
func (t *Task[R]) PostFromInterrupt() bool {
	h := t.handle()
	if h == nil {
		return false
	}
	return t.notify.Signal(func(woken *bool) bool {
		return t.k.NotifyGiveFromISR(h, woken)
	})
}

func (t *Task[R]) FinalizePostFromInterrupt() { t.notify.Finalize(t.k) }
