package kernel

import (
	"runtime"

	"github.com/petermattis/goid"
)

// TaskID uniquely identifies a task context for the life of the kernel.
type TaskID uint32

// TaskState is the kernel's view of a task context.
type TaskState uint8

const (
	StateReady TaskState = iota
	StateBlocked
	StateDeleted
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateBlocked:
		return "Blocked"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Stack frame sizes, in words, charged to a task's stack by the kernel.
const (
	MinStackWords   = 64
	EntryFrameWords = 48
	CallFrameWords  = 24
	ISRFrameWords   = 32
)

// Stack is the fixed stack region of one task context. It is allocated once
// and may be rebound to a new context after the previous one exits.
type Stack struct {
	words      []uint32
	depth      int // words held by open scratch frames
	peak       int // high-water mark of depth plus transient frames
	overflowed bool
	inUse      bool
}

// NewStack allocates a stack of the given size in words.
func NewStack(words int) *Stack {
	if words < MinStackWords {
		words = MinStackWords
	}
	return &Stack{words: make([]uint32, words)}
}

// Size returns the stack size in words.
func (s *Stack) Size() int { return len(s.words) }

func (s *Stack) reset() {
	clear(s.words)
	s.depth = 0
	s.peak = 0
	s.overflowed = false
}

// touch records a transient frame of n words on top of the open frames.
// It reports the first overrun of the stack.
func (s *Stack) touch(n int) bool {
	top := s.depth + n
	over := top > len(s.words)
	if over {
		top = len(s.words)
	}
	if top > s.peak {
		s.peak = top
	}
	if over && !s.overflowed {
		s.overflowed = true
		return true
	}
	return false
}

// Handle is a bound task context. The zero value is not usable; handles come
// from CreateStatic.
type Handle struct {
	k     *Kernel
	id    TaskID
	name  string
	base  int // assigned priority
	prio  int // effective priority, raised by mutex inheritance
	state TaskState
	stack *Stack
	gid   int64

	notify       uint32
	notifyWaiter *waiter
	held         []*Mutex

	foreign bool
}

func (h *Handle) ID() TaskID   { return h.id }
func (h *Handle) Name() string { return h.name }

// Priority returns the effective priority, including inheritance.
func (h *Handle) Priority() int {
	h.k.mu.Lock()
	defer h.k.mu.Unlock()
	return h.prio
}

// BasePriority returns the priority the task was created with.
func (h *Handle) BasePriority() int {
	return h.base
}

func (h *Handle) State() TaskState {
	h.k.mu.Lock()
	defer h.k.mu.Unlock()
	return h.state
}

// CreateStatic binds a new task context to stack and runs entry on it.
// The priority is clamped to the valid range. The context is released when
// entry returns or when it calls Exit, whichever happens first.
func (k *Kernel) CreateStatic(name string, priority int, stack *Stack, entry func(*Handle)) (*Handle, error) {
	if stack == nil || entry == nil {
		return nil, ErrInvalidTask
	}
	priority = k.ClampPriority(priority)

	k.mu.Lock()
	if stack.inUse {
		k.createFailed(name, "stack_in_use")
		k.mu.Unlock()
		return nil, ErrStackInUse
	}
	if k.live >= k.cfg.MaxTasks {
		k.createFailed(name, "no_memory")
		k.mu.Unlock()
		return nil, ErrNoMemory
	}

	k.nextID++
	h := &Handle{
		k:     k,
		id:    k.nextID,
		name:  name,
		base:  priority,
		prio:  priority,
		state: StateReady,
		stack: stack,
	}
	stack.inUse = true
	stack.reset()
	stack.touch(EntryFrameWords)
	k.live++
	k.metrics.tasksCreated.Inc()
	k.metrics.liveTasks.Inc()
	k.emit(EventTaskCreate, h)
	k.mu.Unlock()

	k.log.Debug("task created", "task", name, "id", h.id, "priority", priority, "stack_words", stack.Size())

	bound := make(chan struct{})
	go func() {
		k.mu.Lock()
		h.gid = goid.Get()
		k.tasks[h.gid] = h
		k.mu.Unlock()
		close(bound)

		defer k.Exit(h)
		entry(h)
	}()
	<-bound
	return h, nil
}

func (k *Kernel) createFailed(name, reason string) {
	k.metrics.createFailures.WithLabelValues(reason).Inc()
	k.emit(EventCreateFailed, &Handle{name: name})
}

// Exit releases the context of h and its stack. It is called from the task's
// own goroutine and is a no-op the second time.
func (k *Kernel) Exit(h *Handle) {
	k.mu.Lock()
	if h.state == StateDeleted {
		k.mu.Unlock()
		return
	}
	h.state = StateDeleted
	delete(k.tasks, h.gid)
	h.stack.inUse = false
	h.notify = 0
	k.live--
	k.metrics.taskExits.Inc()
	k.metrics.liveTasks.Dec()
	k.emit(EventTaskExit, h)
	k.mu.Unlock()

	k.log.Debug("task exited", "task", h.name, "id", h.id)
}

// StackHighWaterMark returns the fewest free words h's stack has had since
// the context was created.
func (k *Kernel) StackHighWaterMark(h *Handle) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return h.stack.Size() - h.stack.peak
}

// Scratch lends fn a buffer of n words carved from the top of h's stack.
// It fails without calling fn when the stack cannot hold the frame.
func (k *Kernel) Scratch(h *Handle, n int, fn func([]uint32)) bool {
	if n <= 0 {
		fn(nil)
		return true
	}
	k.mu.Lock()
	s := h.stack
	if s == nil || s.depth+n > s.Size() {
		k.mu.Unlock()
		return false
	}
	s.depth += n
	s.touch(0)
	top := s.Size() - s.depth
	buf := s.words[top : top+n : top+n]
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		s.depth -= n
		k.mu.Unlock()
	}()
	fn(buf)
	return true
}

// NotifyGive increments h's notification counter, or completes its pending
// NotifyTake.
func (k *Kernel) NotifyGive(h *Handle) bool {
	k.mu.Lock()
	cur := k.current()
	woke, ok := k.notifyGive(h)
	preempt := woke != nil && woke.prio > cur.prio
	k.mu.Unlock()

	if preempt {
		runtime.Gosched()
	}
	return ok
}

// NotifyGiveFromISR is NotifyGive for interrupt context. *woken is set when
// the notified task outranks the interrupted one; it is never cleared.
func (k *Kernel) NotifyGiveFromISR(h *Handle, woken *bool) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	interrupted := k.isrEnter()
	woke, ok := k.notifyGive(h)
	markWoken(woken, woke, interrupted)
	return ok
}

func (k *Kernel) notifyGive(h *Handle) (*Handle, bool) {
	if h.state == StateDeleted {
		return nil, false
	}
	if w := h.notifyWaiter; w != nil {
		k.release(w, true)
		return h, true
	}
	if h.notify < MaxCount {
		h.notify++
	}
	return nil, true
}

// NotifyTake consumes one notification of h, blocking up to timeout ticks.
// Only h itself may call it.
func (k *Kernel) NotifyTake(h *Handle, timeout Ticks) bool {
	k.mu.Lock()
	k.touch(h, CallFrameWords)
	if h.notify > 0 {
		h.notify--
		k.mu.Unlock()
		return true
	}
	if timeout == 0 {
		k.mu.Unlock()
		return false
	}

	w := k.newWaiter(h, nil, "notify")
	h.notifyWaiter = w
	k.park(w, nil, timeout)
	return w.ok
}
