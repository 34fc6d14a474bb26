package rtos

import "tickrt/internal/kernel"

// ticksFor truncates ms to whole ticks of period milliseconds.
func ticksFor(ms, period uint32) kernel.Ticks {
	return clampTicks(uint64(ms) / uint64(period))
}

// ticksCarry converts ms plus the caller's carried remainder into whole ticks
// and stores the leftover milliseconds back into *rem for the next call.
func ticksCarry(ms uint32, rem *uint32, period uint32) kernel.Ticks {
	total := uint64(ms) + uint64(*rem)
	*rem = uint32(total % uint64(period))
	return clampTicks(total / uint64(period))
}

// clampTicks keeps finite waits finite.
func clampTicks(n uint64) kernel.Ticks {
	if n >= uint64(kernel.MaxDelay) {
		return kernel.MaxDelay - 1
	}
	return kernel.Ticks(n)
}

// settle resets the carried remainder when an event ended the wait early.
func settle(ok bool, rem *uint32) bool {
	if ok {
		*rem = 0
	}
	return ok
}
