package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Seq   int
	Value [4]byte
}

func TestQueueCapacityAndOrder(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[sample](k, 3)
	require.Equal(t, 3, q.Cap())

	for i := 0; i < 3; i++ {
		require.True(t, q.Send(sample{Seq: i}, 0))
	}
	require.False(t, q.Send(sample{Seq: 99}, 0), "full queue rejects")
	require.Equal(t, 3, q.Len())

	got, ok := q.Receive(0)
	require.True(t, ok)
	require.Equal(t, 0, got.Seq)
	require.True(t, q.Send(sample{Seq: 3}, 0))

	for want := 1; want <= 3; want++ {
		got, ok := q.Receive(0)
		require.True(t, ok)
		require.Equal(t, want, got.Seq)
	}
	_, ok = q.Receive(0)
	require.False(t, ok)
}

func TestQueueCopiesItems(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[sample](k, 1)

	item := sample{Seq: 1, Value: [4]byte{1, 2, 3, 4}}
	require.True(t, q.Send(item, 0))
	item.Value[0] = 9

	got, ok := q.Receive(0)
	require.True(t, ok)
	require.Equal(t, byte(1), got.Value[0])
}

func TestQueueHandsOffToBlockedReceiver(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[int](k, 2)

	result := make(chan int, 1)
	go func() {
		v, ok := q.Receive(MaxDelay)
		if ok {
			result <- v
		}
	}()
	require.Eventually(t, func() bool { _, r := q.Waiting(); return r == 1 }, waitFor, pollGap)

	require.True(t, q.Send(42, 0))
	select {
	case v := <-result:
		require.Equal(t, 42, v)
	case <-time.After(waitFor):
		t.Fatal("receiver not woken")
	}
	require.Equal(t, 0, q.Len())
}

func TestQueueReceiveRefillsFromBlockedSender(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[int](k, 1)
	require.True(t, q.Send(1, 0))

	sent := make(chan bool, 1)
	go func() { sent <- q.Send(2, MaxDelay) }()
	require.Eventually(t, func() bool { s, _ := q.Waiting(); return s == 1 }, waitFor, pollGap)

	v, ok := q.Receive(0)
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, <-sent)

	v, ok = q.Receive(0)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestQueueReceiveTimesOut(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[int](k, 1)

	result := make(chan bool, 1)
	go func() {
		_, ok := q.Receive(2)
		result <- ok
	}()
	require.Eventually(t, func() bool { _, r := q.Waiting(); return r == 1 }, waitFor, pollGap)

	k.Tick()
	k.Tick()
	require.False(t, <-result)

	_, r := q.Waiting()
	require.Zero(t, r)
	require.True(t, q.Send(7, 0), "timed out receiver must not swallow the item")
	require.Equal(t, 1, q.Len())
}

func TestQueueFromISR(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[int](k, 1)

	var woken bool
	require.True(t, q.SendFromISR(5, &woken))
	require.False(t, q.SendFromISR(6, &woken))
	require.False(t, woken)

	v, ok := q.ReceiveFromISR(&woken)
	require.True(t, ok)
	require.Equal(t, 5, v)
	_, ok = q.ReceiveFromISR(&woken)
	require.False(t, ok)
	require.False(t, woken)
}

func TestQueueMinimumCapacity(t *testing.T) {
	k := newTestKernel(t)
	require.Equal(t, 1, NewQueue[int](k, 0).Cap())
}

func TestQueueNilInterfaceItems(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue[error](k, 2)

	require.True(t, q.Send(nil, 0))
	err, ok := q.Receive(0)
	require.True(t, ok)
	require.NoError(t, err)

	got := make(chan bool, 1)
	_, werr := k.CreateStatic("rx", 1, NewStack(128), func(*Handle) {
		e, ok := q.Receive(MaxDelay)
		got <- ok && e == nil
	})
	require.NoError(t, werr)
	require.Eventually(t, func() bool { _, r := q.Waiting(); return r == 1 }, waitFor, pollGap)
	require.True(t, q.Send(nil, 0), "handed straight to the receiver")
	require.True(t, <-got)

	require.True(t, q.Send(nil, 0))
	require.True(t, q.Send(nil, 0))
	require.False(t, q.Send(nil, 0), "full")
	_, ok = q.Receive(0)
	require.True(t, ok)
	require.Equal(t, 1, q.Len(), "kernel still usable after nil items")
}
