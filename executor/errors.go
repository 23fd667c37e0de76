package executor

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

var (
	// ErrShutdown is returned when submitting to an executor that has been shut down.
	ErrShutdown = errors.New("executor is shut down")

	// ErrCanceled is returned by Future.Get for tasks that were canceled before they started.
	ErrCanceled = errors.New("task canceled")
)

// PanicError is the failure recorded for a task that panicked.
type PanicError struct {
	// Value is the value passed to panic
	Value any

	message    string
	stacktrace string
}

func (pe *PanicError) Error() string {
	return pe.message
}

func (pe *PanicError) Stack() string {
	return pe.stacktrace
}

// Unwrap returns the panic value if it was an error.
func (pe *PanicError) Unwrap() error {
	if err, ok := pe.Value.(error); ok {
		return err
	}

	return nil
}

func newPanicError(r any) *PanicError {
	// Skip the recovering frames so the trace starts at the panic site
	goerr := goerrors.Wrap(r, 2)

	return &PanicError{
		Value:      r,
		message:    fmt.Sprintf("panic in task: %v", r),
		stacktrace: string(goerr.Stack()),
	}
}
