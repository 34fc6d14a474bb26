// internal/kernel/kernel.go

// Package kernel is the tick-based real-time kernel the rtos wrappers sit on.
//
// It owns a fixed task table, fixed task stacks, a tick counter with a
// deadline-ordered timer list, and the blocking objects (queues, semaphores,
// mutexes, per-task notifications). Waiters are woken highest priority
// first, FIFO among equal priorities. Task bodies run on their own
// goroutines; the kernel identifies the calling task by goroutine so that
// shared objects can apply priority ordering and inheritance without the
// caller naming itself.
package kernel

import (
	"errors"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/petermattis/goid"
	"github.com/prometheus/client_golang/prometheus"
)

// Ticks is a duration in kernel ticks.
type Ticks uint32

const (
	// MaxDelay blocks without a timeout.
	MaxDelay Ticks = math.MaxUint32

	// IdlePriority is what an interrupt preempts when no task is ready.
	IdlePriority = 0

	// MaxCount is the ceiling of a counting semaphore.
	MaxCount uint32 = math.MaxInt32
)

var (
	ErrStackInUse   = errors.New("stack is bound to a live task")
	ErrNoMemory     = errors.New("task table exhausted")
	ErrInvalidTask  = errors.New("task needs a stack and an entry routine")
	ErrTraceEnabled = errors.New("trace already enabled")
)

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithRegistry registers the kernel metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(k *Kernel) { k.reg = reg }
}

// Kernel is a single-core, priority based, tick driven kernel.
type Kernel struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex         // protects everything below up to the clock
	now     uint64             // ticks since boot
	seq     uint64             // tie breaker for wait lists and timers
	timers  *redblacktree.Tree // timerKey -> *waiter, ordered by deadline
	tasks   map[int64]*Handle  // bound tasks by goroutine id
	live    int                // bound task contexts (may lead tasks briefly)
	nextID  TaskID
	closed  bool
	dropped uint64

	clock     *TickClock
	tickDone  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	events    chan Event
	traceDone chan struct{}
	trace     atomic.Pointer[tracer]

	reg       *prometheus.Registry
	metrics   *metrics
	isrYields atomic.Uint64
}

// New creates a kernel. The tick clock does not run until Start; until then
// time only advances through Tick.
func New(cfg Config, opts ...Option) *Kernel {
	cfg = cfg.clamped()
	k := &Kernel{
		cfg:       cfg,
		timers:    redblacktree.NewWith(timerCmp),
		tasks:     make(map[int64]*Handle),
		tickDone:  make(chan struct{}),
		events:    make(chan Event, cfg.EventBuffer),
		traceDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = cfg.NewLogger()
	}
	if k.reg == nil {
		k.reg = prometheus.NewRegistry()
	}
	k.metrics = newMetrics(k.reg)

	go k.traceLoop()
	return k
}

// Start runs the tick clock at Config.TickMS.
func (k *Kernel) Start() {
	k.startOnce.Do(func() {
		clock := NewTickClock(256) // buffer size for tick events
		k.mu.Lock()
		k.clock = clock
		k.mu.Unlock()

		clock.Start(time.Duration(k.cfg.TickMS) * time.Millisecond)
		go func() {
			defer close(k.tickDone)
			for range clock.Ch {
				k.Tick()
			}
		}()
		k.log.Info("kernel started", "tick_ms", k.cfg.TickMS, "max_priority", k.cfg.MaxPriority, "max_tasks", k.cfg.MaxTasks)
	})
}

// Shutdown stops the tick clock and drains the event trace. Tasks still
// blocked on a timeout stay blocked.
func (k *Kernel) Shutdown() {
	k.stopOnce.Do(func() {
		k.mu.Lock()
		clock := k.clock
		k.mu.Unlock()
		if clock != nil {
			clock.Stop()
			<-k.tickDone
		}

		k.mu.Lock()
		k.closed = true
		close(k.events)
		dropped := k.dropped
		k.mu.Unlock()

		<-k.traceDone
		k.log.Info("kernel stopped", "ticks", k.Now(), "dropped_events", dropped)
	})
}

// Tick advances kernel time by one tick and expires due timeouts.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.now++
	k.metrics.ticks.Inc()
	for {
		node := k.timers.Left()
		if node == nil {
			return
		}
		if node.Key.(timerKey).deadline > k.now {
			return
		}
		w := node.Value.(*waiter)
		if w.kind != "delay" {
			k.metrics.timeouts.WithLabelValues(w.kind).Inc()
			k.emit(EventTimeout, w.t)
		}
		k.release(w, false)
	}
}

// Now returns the ticks since boot.
func (k *Kernel) Now() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// TickPeriod is the tick length in milliseconds.
func (k *Kernel) TickPeriod() uint32 { return k.cfg.TickMS }

// MaxPriority is the highest valid task priority.
func (k *Kernel) MaxPriority() int { return k.cfg.MaxPriority }

// ClampPriority maps p into [IdlePriority, MaxPriority].
func (k *Kernel) ClampPriority(p int) int {
	if p < IdlePriority {
		return IdlePriority
	}
	if p > k.cfg.MaxPriority {
		return k.cfg.MaxPriority
	}
	return p
}

func (k *Kernel) Config() Config { return k.cfg }

func (k *Kernel) Logger() *slog.Logger { return k.log }

// Registry holds the kernel metrics.
func (k *Kernel) Registry() *prometheus.Registry { return k.reg }

// LiveTasks returns the number of bound task contexts.
func (k *Kernel) LiveTasks() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.live
}

// ISRYields returns how many yield requests interrupts have issued.
func (k *Kernel) ISRYields() uint64 { return k.isrYields.Load() }

// Yield lets other ready goroutines run. It never suspends the caller on a
// kernel object.
func (k *Kernel) Yield() {
	runtime.Gosched()
}

// Delay suspends h for the given number of ticks. Zero ticks only yields.
func (k *Kernel) Delay(h *Handle, ticks Ticks) {
	if ticks == 0 {
		k.Yield()
		return
	}
	k.mu.Lock()
	if h == nil {
		h = k.current()
	}
	k.touch(h, CallFrameWords)
	k.park(k.newWaiter(h, nil, "delay"), nil, ticks)
}

// YieldFromISR requests a context switch on interrupt exit.
func (k *Kernel) YieldFromISR() {
	k.isrYields.Add(1)
	k.metrics.isrYields.Inc()
	k.mu.Lock()
	k.emit(EventISRYield, k.interrupted())
	k.mu.Unlock()
	runtime.Gosched()
}

// current returns the calling task, or a throwaway idle-priority handle when
// the caller is not a kernel task. Caller holds k.mu.
func (k *Kernel) current() *Handle {
	if h, ok := k.tasks[goid.Get()]; ok {
		return h
	}
	return &Handle{k: k, name: "foreign", prio: IdlePriority, base: IdlePriority, foreign: true}
}

// interrupted returns the task an interrupt would preempt: the highest
// priority ready task, or nil when only idle would be running.
func (k *Kernel) interrupted() *Handle {
	var top *Handle
	for _, h := range k.tasks {
		if h.state != StateReady {
			continue
		}
		if top == nil || h.prio > top.prio || (h.prio == top.prio && h.id < top.id) {
			top = h
		}
	}
	return top
}

// isrEnter charges an interrupt frame to the preempted task's stack and
// returns that task's priority.
func (k *Kernel) isrEnter() int {
	t := k.interrupted()
	if t == nil {
		return IdlePriority
	}
	k.touch(t, ISRFrameWords)
	return t.prio
}

func markWoken(woken *bool, woke *Handle, interrupted int) {
	if woken != nil && woke != nil && woke.prio > interrupted {
		*woken = true
	}
}

func (k *Kernel) nextSeq() uint64 {
	k.seq++
	return k.seq
}

func (k *Kernel) newWaiter(t *Handle, item any, kind string) *waiter {
	return &waiter{t: t, wake: make(chan struct{}, 1), item: item, kind: kind}
}

// park blocks w on l (nil for a plain delay) until it is released or the
// timeout expires. Caller holds k.mu; park returns with it released.
func (k *Kernel) park(w *waiter, l *waitList, timeout Ticks) {
	if l != nil {
		l.add(w, k.nextSeq())
	}
	if timeout != MaxDelay {
		w.timed = true
		w.timer = timerKey{deadline: k.now + uint64(timeout), seq: k.nextSeq()}
		k.timers.Put(w.timer, w)
	}
	w.t.state = StateBlocked
	k.mu.Unlock()

	<-w.wake
}

// release completes w. Caller holds k.mu.
func (k *Kernel) release(w *waiter, ok bool) {
	if w.list != nil {
		w.list.remove(w)
	}
	if w.timed {
		k.timers.Remove(w.timer)
		w.timed = false
	}
	if w.t.notifyWaiter == w {
		w.t.notifyWaiter = nil
	}
	if w.t.state == StateBlocked {
		w.t.state = StateReady
	}
	w.ok = ok
	w.wake <- struct{}{}
}

// touch charges a frame of n words to h's stack. Caller holds k.mu.
func (k *Kernel) touch(h *Handle, n int) {
	if h == nil || h.stack == nil {
		return
	}
	if h.stack.touch(n) {
		k.emit(EventStackOverflow, h)
		k.log.Warn("task stack overflow", "task", h.name, "id", h.id, "stack_words", h.stack.Size())
	}
}
