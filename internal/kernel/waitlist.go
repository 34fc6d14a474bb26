package kernel

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// waiter is one blocked call. Exactly one of release or timer expiry
// completes it, always under Kernel.mu.
type waiter struct {
	t    *Handle
	wake chan struct{}
	ok   bool
	item any

	list  *waitList
	key   waitKey
	timed bool
	timer timerKey
	kind  string // metric label for timeouts
}

// waitKey orders a wait list: higher priority first, FIFO among equals.
type waitKey struct {
	prio int
	seq  uint64
}

func waitCmp(a, b any) int {
	ka, kb := a.(waitKey), b.(waitKey)
	switch {
	case ka.prio > kb.prio:
		return -1
	case ka.prio < kb.prio:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// timerKey is used as a key in the kernel timer tree.
type timerKey struct {
	deadline uint64
	seq      uint64
}

func timerCmp(a, b any) int {
	ka, kb := a.(timerKey), b.(timerKey)
	switch {
	case ka.deadline < kb.deadline:
		return -1
	case ka.deadline > kb.deadline:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

type waitList struct {
	tree *redblacktree.Tree
}

func newWaitList() waitList {
	return waitList{tree: redblacktree.NewWith(waitCmp)}
}

func (l *waitList) add(w *waiter, seq uint64) {
	w.list = l
	w.key = waitKey{prio: w.t.prio, seq: seq}
	l.tree.Put(w.key, w)
}

func (l *waitList) remove(w *waiter) {
	if w.list != l {
		return
	}
	l.tree.Remove(w.key)
	w.list = nil
}

// peek returns the waiter that would be woken next.
func (l *waitList) peek() *waiter {
	node := l.tree.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*waiter)
}

func (l *waitList) pop() *waiter {
	w := l.peek()
	if w != nil {
		l.remove(w)
	}
	return w
}

func (l *waitList) len() int {
	return l.tree.Size()
}
