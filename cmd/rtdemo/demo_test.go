package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tickrt/internal/kernel"
)

func TestDemoMovesReadings(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.TickMS = 1
	cfg.LogLevel = "error"
	k := kernel.New(cfg)
	t.Cleanup(k.Shutdown)
	k.Start()

	d := newDemo(k)
	require.NoError(t, d.start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.interrupts(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		s := d.snapshot()
		return s.consumed >= 3 && s.alarms >= 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	d.stop()

	s := d.snapshot()
	require.Equal(t, s.produced, s.consumed+uint64(d.q.Len()))
	require.Positive(t, d.irqs)
	require.GreaterOrEqual(t, d.stack["consumer"], uint32(kernel.CallFrameWords))
	require.Zero(t, d.consumer.UsedStackSize())
}
