package main

import (
	"context"
	"errors"
	"hash/crc32"
	"log/slog"
	"time"

	"tickrt/internal/job"
	"tickrt/internal/kernel"
	"tickrt/internal/rtos"
)

const stackWords = 256

var errStart = errors.New("demo task did not start")

type reading struct {
	seq  uint32
	tick uint64
}

// tally is only touched under demo.mu.
type tally struct {
	produced, dropped uint64
	consumed, alarms  uint64
	checksum          uint32
	maxLag            uint64
}

type demo struct {
	k     *kernel.Kernel
	q     *rtos.Queue[reading]
	mu    *rtos.Mutex
	alarm *rtos.Semaphore
	t     tally

	producer *rtos.Task[*job.Periodic]
	consumer *rtos.Task[*job.Func]
	watcher  *rtos.Task[*job.Func]

	seq   uint32
	irqs  uint64
	stack map[string]uint32
}

func newDemo(k *kernel.Kernel) *demo {
	d := &demo{
		k:     k,
		q:     rtos.NewQueue[reading](k, 8),
		mu:    rtos.NewMutex(k),
		alarm: rtos.NewSemaphore(k, rtos.Binary),
		stack: make(map[string]uint32),
	}
	d.producer = rtos.NewTask(k, job.NewPeriodic(40, d.produce), stackWords)
	d.consumer = rtos.NewTask(k, job.NewFunc(d.consume), stackWords)

	var rem uint32
	d.watcher = rtos.NewTask(k, job.NewFunc(func(*rtos.Context) error {
		if d.alarm.WaitCarry(50, &rem) {
			d.mu.Lock()
			d.t.alarms++
			d.mu.Unlock()
		}
		return nil
	}), stackWords)
	return d
}

func (d *demo) produce(*rtos.Context) bool {
	d.seq++
	ok := d.q.PushTimeout(reading{seq: d.seq, tick: d.k.Now()}, 10)

	d.mu.Lock()
	if ok {
		d.t.produced++
	} else {
		d.t.dropped++
	}
	d.mu.Unlock()
	return true
}

func (d *demo) consume(c *rtos.Context) error {
	r, ok := d.q.PopTimeout(100)
	if !ok {
		return nil
	}
	var sum uint32
	c.Scratch(2, func(buf []uint32) {
		buf[0], buf[1] = r.seq, uint32(r.tick)
		sum = crc32.ChecksumIEEE([]byte{
			byte(buf[0]), byte(buf[0] >> 8), byte(buf[1]), byte(buf[1] >> 8),
		})
	})
	lag := d.k.Now() - r.tick

	d.mu.Lock()
	d.t.consumed++
	d.t.checksum ^= sum
	d.t.maxLag = max(d.t.maxLag, lag)
	d.mu.Unlock()
	return nil
}

func (d *demo) start() error {
	if !d.watcher.Start(4, "watcher") {
		return errStart
	}
	if !d.consumer.Start(3, "consumer") {
		d.watcher.Stop()
		return errStart
	}
	if !d.producer.Start(2, "producer") {
		d.consumer.Stop()
		d.watcher.Stop()
		return errStart
	}
	return nil
}

// interrupts fires a simulated timer interrupt every period until ctx ends.
func (d *demo) interrupts(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.alarm.PreparePostFromInterrupt()
			d.alarm.PostFromInterrupt()
			d.alarm.FinalizePostFromInterrupt()
			d.irqs++
		}
	}
}

// stop ends the tasks producer first, so the consumer can drain.
func (d *demo) stop() {
	d.stack["producer"] = d.producer.UsedStackSize()
	d.stack["consumer"] = d.consumer.UsedStackSize()
	d.stack["watcher"] = d.watcher.UsedStackSize()

	d.producer.Stop()
	d.consumer.Stop()
	d.watcher.Stop()
}

func (d *demo) snapshot() tally {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t
}

func (d *demo) report(log *slog.Logger) {
	t := d.snapshot()
	log.Info("demo finished",
		"ticks", d.k.Now(),
		"produced", t.produced,
		"dropped", t.dropped,
		"consumed", t.consumed,
		"queued", d.q.Len(),
		"max_lag_ticks", t.maxLag,
		"checksum", t.checksum,
		"interrupts", d.irqs,
		"alarms", t.alarms,
		"isr_yields", d.k.ISRYields(),
	)
	for name, used := range d.stack {
		log.Info("stack usage", "task", name, "used_words", used, "size_words", stackWords)
	}
}
