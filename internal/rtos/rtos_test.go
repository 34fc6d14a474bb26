package rtos

import (
	"testing"
	"time"

	"tickrt/internal/kernel"
)

const (
	waitFor = time.Second
	pollGap = time.Millisecond
)

// newTestKernel returns a kernel with the given tick period whose clock is
// not running; tests advance time with Tick or call Start themselves.
func newTestKernel(t *testing.T, tickMS uint32) *kernel.Kernel {
	t.Helper()
	cfg := kernel.DefaultConfig()
	cfg.TickMS = tickMS
	cfg.LogLevel = "error"
	k := kernel.New(cfg)
	t.Cleanup(k.Shutdown)
	return k
}

// blocker returns a runner that parks on hold, outside the kernel, and then
// ends its loop. The task stays Ready to the kernel while it waits.
func blocker(hold <-chan struct{}) RunnerFunc {
	return func(*Context) bool {
		<-hold
		return false
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// tickWhileBlocked advances the kernel one tick each time h is blocked,
// until done closes. It returns how many ticks it took.
func tickWhileBlocked(t *testing.T, k *kernel.Kernel, h *kernel.Handle, done <-chan struct{}) int {
	t.Helper()
	deadline := time.After(waitFor)
	ticks := 0
	for {
		select {
		case <-done:
			return ticks
		case <-deadline:
			t.Fatalf("gave up after %d ticks", ticks)
		default:
		}
		if h.State() == kernel.StateBlocked {
			k.Tick()
			ticks++
			continue
		}
		time.Sleep(pollGap)
	}
}
