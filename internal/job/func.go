// Package job has ready-made runners for rtos tasks.
package job

import (
	"errors"
	"sync"
	"sync/atomic"

	"tickrt/internal/rtos"
)

// ErrDone ends a Func loop without recording an error.
var ErrDone = errors.New("job: done")

// Func runs fn once per loop iteration until it returns an error.
type Func struct {
	fn   func(c *rtos.Context) error
	runs atomic.Uint64

	mu  sync.Mutex
	err error
}

func NewFunc(fn func(c *rtos.Context) error) *Func {
	return &Func{fn: fn}
}

func (f *Func) Run(c *rtos.Context) bool {
	err := f.fn(c)
	f.runs.Add(1)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrDone) {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
	}
	return false
}

// Err returns the error that ended the last loop, if any.
func (f *Func) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Runs returns how many times fn has been called.
func (f *Func) Runs() uint64 { return f.runs.Load() }
