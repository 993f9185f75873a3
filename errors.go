package coloop

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrReentrantRun is returned when Run is called from inside a
	// task the scheduler is running.
	ErrReentrantRun = errors.New("coloop: cannot call Run from within the loop")

	// ErrBadDescriptor is reported by the readiness check when a
	// registered descriptor is closed or invalid.
	ErrBadDescriptor = errors.New("coloop: bad descriptor")

	// ErrQueueClosed is returned by Queue operations after Close.
	ErrQueueClosed = errors.New("coloop: queue closed")
)

// PanicError is reported to the error handler when a task panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	// coro wraps panics with the coroutine stack.
	if ds, ok := e.Value.(interface{ DebugString() string }); ok {
		return "coloop: task panicked: " + ds.DebugString()
	}
	return fmt.Sprintf("coloop: task panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
