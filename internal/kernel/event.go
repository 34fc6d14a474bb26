// internal/kernel/event.go

package kernel

import (
	"time"
)

// EventKind represents the type of kernel event
type EventKind int

const (
	EventTaskCreate EventKind = iota
	EventTaskExit
	EventCreateFailed
	EventTimeout
	EventISRYield
	EventInherit
	EventStackOverflow
)

// Event is emitted on task lifecycle changes and notable scheduling decisions.
type Event struct {
	Time     time.Time
	Tick     uint64
	Kind     EventKind
	TaskID   TaskID
	Task     string
	Priority int
}

func (ek EventKind) String() string {
	switch ek {
	case EventTaskCreate:
		return "TaskCreate"
	case EventTaskExit:
		return "TaskExit"
	case EventCreateFailed:
		return "CreateFailed"
	case EventTimeout:
		return "Timeout"
	case EventISRYield:
		return "ISRYield"
	case EventInherit:
		return "Inherit"
	case EventStackOverflow:
		return "StackOverflow"
	default:
		return "Unknown"
	}
}
