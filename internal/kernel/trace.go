// internal/kernel/trace.go

package kernel

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

type tracer struct {
	f *os.File
	w *csv.Writer
}

// EnableCSVTrace opens the given file path for CSV logging of kernel events.
// Events emitted before the call are not written.
func (k *Kernel) EnableCSVTrace(path string) error {
	if k.trace.Load() != nil {
		return ErrTraceEnabled
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "tick", "event", "task_id", "task", "priority"}); err != nil {
		f.Close()
		return fmt.Errorf("write trace header: %w", err)
	}
	w.Flush()

	if !k.trace.CompareAndSwap(nil, &tracer{f: f, w: w}) {
		f.Close()
		return ErrTraceEnabled
	}
	return nil
}

// emit queues an event for the trace loop. Caller holds k.mu.
// Events are dropped rather than blocking the kernel when the buffer is full.
func (k *Kernel) emit(kind EventKind, h *Handle) {
	if k.closed {
		return
	}
	ev := Event{
		Time: time.Now(),
		Tick: k.now,
		Kind: kind,
	}
	if h != nil {
		ev.TaskID = h.id
		ev.Task = h.name
		ev.Priority = h.prio
	}
	select {
	case k.events <- ev:
	default:
		k.dropped++
	}
}

// traceLoop consumes events until the kernel shuts down.
func (k *Kernel) traceLoop() {
	defer close(k.traceDone)
	for ev := range k.events {
		k.handleEvent(ev)
	}
	if tr := k.trace.Swap(nil); tr != nil {
		tr.close()
	}
}

func (k *Kernel) handleEvent(ev Event) {
	k.log.Debug("kernel event",
		"event", ev.Kind.String(),
		"tick", ev.Tick,
		"task_id", ev.TaskID,
		"task", ev.Task,
		"priority", ev.Priority,
	)

	tr := k.trace.Load()
	if tr == nil {
		return
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Task,
		strconv.Itoa(ev.Priority),
	}
	if err := tr.w.Write(rec); err != nil {
		k.log.Warn("trace write failed", "error", err)
		return
	}
	tr.w.Flush()
}

func (t *tracer) close() {
	t.w.Flush()
	t.f.Close()
}
