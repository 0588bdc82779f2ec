package train

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoOptimizer is returned when an operation needs an optimizer
	// before one has been created.
	ErrNoOptimizer = errors.New("trainer has no optimizer")

	// ErrUnknownCallback is returned by SetCallbackAttr for a name that is
	// not registered.
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrUnknownField is returned by SetCallbackAttr when the callback has
	// no settable field of that name.
	ErrUnknownField = errors.New("unknown callback field")

	// ErrNoOutDir is returned by New when Config.OutDir is empty.
	ErrNoOutDir = errors.New("output directory is required")
)

// interruptError marks cancellation observed inside Fit.
type interruptError struct {
	cause error
}

func (e *interruptError) Error() string {
	return "training interrupted: " + e.cause.Error()
}

func (e *interruptError) Unwrap() error {
	return e.cause
}
