package tracking

import "errors"

// Every failure in this package is recoverable: the caller rejects the
// request, leaves state untouched, and lets the operator retry after the next
// refresh. Callers match with errors.Is.
var (
	// ErrInvalidTransition means the requested event is not legal from the
	// load's current status for its service type.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrMachineTypeMismatch means the bound or requested machine cannot run
	// the stage the load is in.
	ErrMachineTypeMismatch = errors.New("machine type mismatch")

	// ErrMachineUnavailable means the machine is not AVAILABLE or is already
	// bound to another active load.
	ErrMachineUnavailable = errors.New("machine unavailable")

	// ErrNoMachineBound means a start was requested before a machine was
	// assigned to the load.
	ErrNoMachineBound = errors.New("no machine bound to load")

	// ErrDuplicateRequest means an identical action is already in flight for
	// the load. Benign: typically a repeated click.
	ErrDuplicateRequest = errors.New("duplicate request in flight")
)
