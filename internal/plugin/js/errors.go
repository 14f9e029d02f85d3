package js

import (
	"context"
	"errors"

	"github.com/dop251/goja"
)

var (
	// ErrModuleNotFound is raised by require when no scope entry provides
	// the requested module.
	ErrModuleNotFound = errors.New("module not found")
)

// ScriptError is an exception thrown by JavaScript code.
type ScriptError struct {
	// Message is the thrown value rendered as text.
	Message string

	// Value is the thrown value exported to Go.
	Value any

	// Stack is the JavaScript stack at the throw site.
	Stack string

	err error
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Unwrap returns the host error the script threw, the context error that
// interrupted it, or the runtime error.
func (e *ScriptError) Unwrap() error {
	return e.err
}

// newScriptError converts an error returned by RunProgram.
func newScriptError(ctx context.Context, err error) *ScriptError {
	se := &ScriptError{Message: err.Error(), err: err}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctx.Err() != nil {
			se.err = ctx.Err()
		}
		se.Stack = interrupted.String()
		return se
	}

	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return se
	}

	se.Stack = ex.String()
	val := ex.Value()
	if val == nil {
		return se
	}
	se.Message = val.String()
	if obj, ok := val.(*goja.Object); ok {
		if hostErr, ok := exportedError(obj); ok {
			se.Message = hostErr.Error()
			se.Value = hostErr
			se.err = hostErr
			return se
		}
	}
	se.Value = val.Export()
	return se
}

// exportedError returns the Go error behind an object made by
// Runtime.NewGoError.
func exportedError(obj *goja.Object) (error, bool) {
	v := obj.Get("value")
	if v == nil {
		return nil, false
	}
	err, ok := v.Export().(error)
	return err, ok
}
