package sim

import "fmt"

// InitError reports that the driver could not acquire or prime its compute
// backend. Nothing is left partially constructed.
type InitError struct {
	Backend string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialising %s backend: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// DispatchError reports a kernel dispatch, completion or readback failure
// that aborted a step. The committed potential buffer is left untouched.
type DispatchError struct {
	Kernel string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kernel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
