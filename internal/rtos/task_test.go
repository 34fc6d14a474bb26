package rtos

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tickrt/internal/kernel"
)

func TestTaskRestartsAfterRunEnds(t *testing.T) {
	k := newTestKernel(t, 1)
	var runs atomic.Int32
	task := NewTask(k, RunnerFunc(func(*Context) bool {
		runs.Add(1)
		return false
	}), 128)

	require.True(t, task.Start(1, "once"))
	require.Eventually(t, func() bool { return runs.Load() == 1 && !task.IsRunning() }, waitFor, pollGap)
	require.False(t, task.Stop(), "inert task")

	require.True(t, task.Start(1, "again"))
	require.Eventually(t, func() bool { return runs.Load() == 2 && !task.IsRunning() }, waitFor, pollGap)
	require.Eventually(t, func() bool { return k.LiveTasks() == 0 }, waitFor, pollGap)
}

func TestTaskRejectsSecondStart(t *testing.T) {
	k := newTestKernel(t, 1)
	hold := make(chan struct{})
	task := NewTask(k, blocker(hold), 128)

	require.True(t, task.Start(1, "held"))
	require.Eventually(t, task.IsRunning, waitFor, pollGap)
	require.False(t, task.Start(1, "held"))
	require.Equal(t, 1, k.LiveTasks())

	close(hold)
	require.Eventually(t, func() bool { return !task.IsRunning() }, waitFor, pollGap)
}

func TestStopNeverStarted(t *testing.T) {
	k := newTestKernel(t, 1)
	task := NewTask(k, blocker(nil), 128)
	require.False(t, task.Stop())
	require.False(t, task.IsRunning())
	require.Zero(t, task.UsedStackSize())
	require.False(t, task.Post())
}

func TestStopReturnsAfterTimedWait(t *testing.T) {
	k := newTestKernel(t, 1)
	k.Start()
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		c.MSleep(5)
		return true
	}), 256)

	require.True(t, task.Start(2, "sleeper"))
	require.Eventually(t, task.IsRunning, waitFor, pollGap)

	stopped := make(chan bool, 1)
	go func() { stopped <- task.Stop() }()
	select {
	case ok := <-stopped:
		require.True(t, ok)
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
	require.False(t, task.IsRunning())
	require.Zero(t, task.UsedStackSize())
	require.False(t, task.Stop())
}

func TestConcurrentStopsBothWait(t *testing.T) {
	k := newTestKernel(t, 1)
	hold := make(chan struct{})
	task := NewTask(k, blocker(hold), 128)
	require.True(t, task.Start(1, "held"))

	stopped := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() { stopped <- task.Stop() }()
	}
	select {
	case <-stopped:
		t.Fatal("Stop returned while the loop was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(hold)
	for i := 0; i < 2; i++ {
		select {
		case ok := <-stopped:
			require.True(t, ok)
		case <-time.After(waitFor):
			t.Fatal("Stop did not return")
		}
	}
}

func TestStartFailsWhenTaskTableFull(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.MaxTasks = 1
	cfg.LogLevel = "error"
	k := kernel.New(cfg)
	t.Cleanup(k.Shutdown)

	hold := make(chan struct{})
	a := NewTask(k, blocker(hold), 128)
	b := NewTask(k, blocker(hold), 128)
	require.True(t, a.Start(1, "a"))
	require.False(t, b.Start(1, "b"))
	require.False(t, b.Stop())

	close(hold)
	require.Eventually(t, func() bool { return k.LiveTasks() == 0 }, waitFor, pollGap)
	require.True(t, b.Start(1, "b"))
	require.Eventually(t, func() bool { return k.LiveTasks() == 0 }, waitFor, pollGap)
}

func TestStopRequestedVisibleInsideRun(t *testing.T) {
	k := newTestKernel(t, 1)
	seen := make(chan struct{})
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		for !c.StopRequested() {
			c.Yield()
		}
		close(seen)
		return true
	}), 128)
	require.True(t, task.Start(1, "poller"))
	require.Eventually(t, task.IsRunning, waitFor, pollGap)
	require.True(t, task.Stop())
	waitClosed(t, seen, "stop request")
}

func TestPostWakesWait(t *testing.T) {
	k := newTestKernel(t, 1)
	k.Start()
	got := make(chan struct{}, 4)
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		if c.WaitTimeout(5) {
			got <- struct{}{}
		}
		return true
	}), 256)
	require.True(t, task.Start(2, "listener"))
	require.Eventually(t, task.IsRunning, waitFor, pollGap)

	require.True(t, task.Post())
	require.True(t, task.Post())
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(waitFor):
			t.Fatalf("notification %d not received", i)
		}
	}
	require.True(t, task.Stop())
	require.False(t, task.Post())
}

func TestWaitCarryRemainder(t *testing.T) {
	k := newTestKernel(t, 10)
	waited := make(chan struct{})
	ready := make(chan struct{})
	type result struct {
		first, second, third bool
		rem                  [3]uint32
	}
	out := make(chan result, 1)
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		var r result
		var rem uint32
		r.first = c.WaitCarry(4, &rem)
		r.rem[0] = rem
		r.second = c.WaitCarry(4, &rem)
		r.rem[1] = rem
		close(waited)
		<-ready
		r.third = c.WaitCarry(30, &rem)
		r.rem[2] = rem
		out <- r
		return false
	}), 256)
	require.True(t, task.Start(1, "carry"))
	waitClosed(t, waited, "timed out waits")
	require.True(t, task.Post())
	close(ready)

	r := <-out
	require.False(t, r.first, "4 ms is under one tick")
	require.False(t, r.second)
	require.True(t, r.third)
	require.Equal(t, [3]uint32{4, 8, 0}, r.rem)
}

func TestMSleepCarryKeepsPace(t *testing.T) {
	k := newTestKernel(t, 15)
	handles := make(chan *kernel.Handle, 1)
	done := make(chan struct{})
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		handles <- c.Handle()
		var rem uint32
		for i := 0; i < 6; i++ {
			c.MSleepCarry(10, &rem)
		}
		close(done)
		return false
	}), 256)
	require.True(t, task.Start(1, "pacer"))

	h := <-handles
	require.Equal(t, 4, tickWhileBlocked(t, k, h, done), "60 ms at 15 ms per tick")
	require.Equal(t, uint64(4), k.Now())
}

func TestNapSleepsOneTick(t *testing.T) {
	k := newTestKernel(t, 15)
	handles := make(chan *kernel.Handle, 1)
	done := make(chan struct{})
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		handles <- c.Handle()
		c.Nap()
		c.MSleep(14)
		close(done)
		return false
	}), 256)
	require.True(t, task.Start(1, "napper"))

	h := <-handles
	require.Equal(t, 1, tickWhileBlocked(t, k, h, done))
}

func TestUsedStackSize(t *testing.T) {
	k := newTestKernel(t, 1)
	hold := make(chan struct{})
	type result struct{ scratched, tooBig bool }
	out := make(chan result, 1)
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		var r result
		r.scratched = c.Scratch(100, func(buf []uint32) {
			for i := range buf {
				buf[i] = 0xdeadbeef
			}
		})
		r.tooBig = c.Scratch(1000, func([]uint32) {})
		out <- r
		<-hold
		return false
	}), 256)
	require.Zero(t, task.UsedStackSize())
	require.True(t, task.Start(1, "deep"))

	r := <-out
	require.True(t, r.scratched)
	require.False(t, r.tooBig)
	require.Equal(t, uint32(100), task.UsedStackSize())

	close(hold)
	require.Eventually(t, func() bool { return !task.IsRunning() }, waitFor, pollGap)
	require.Zero(t, task.UsedStackSize())
}

func TestPostFromInterruptYieldsOnce(t *testing.T) {
	k := newTestKernel(t, 1)
	done := make(chan struct{})
	hold := make(chan struct{})
	defer close(hold)
	task := NewTask(k, RunnerFunc(func(c *Context) bool {
		c.Wait()
		close(done)
		<-hold
		return false
	}), 256)
	require.True(t, task.Start(2, "isr-target"))
	require.Eventually(t, func() bool {
		h := task.handle()
		return h != nil && h.State() == kernel.StateBlocked
	}, waitFor, pollGap)

	task.PreparePostFromInterrupt()
	require.True(t, task.PostFromInterrupt())
	require.True(t, task.PostFromInterrupt())
	require.Equal(t, PreparedWakePending, task.notify.State())
	task.FinalizePostFromInterrupt()

	waitClosed(t, done, "notified task")
	require.Equal(t, uint64(1), k.ISRYields())
	require.Equal(t, NotPrepared, task.notify.State())
}
