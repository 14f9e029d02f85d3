package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrInitialization indicates the application could not be assembled.
	ErrInitialization = errors.New("initialization failed")

	// ErrUnknownRunner indicates the configuration names a runner that
	// is not built in.
	ErrUnknownRunner = errors.New("unknown runner")
)

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name (e.g., "run", "watch", "discover")
	Target string // Target of the operation (e.g., plugin folder)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
