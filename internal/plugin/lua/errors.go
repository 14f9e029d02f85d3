package lua

import (
	"context"
	"errors"

	lua "github.com/yuin/gopher-lua"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")
)

// ScriptError is an error raised by Lua code.
type ScriptError struct {
	// Message is the raised value rendered as text.
	Message string

	// Value is the raised value converted to Go.
	Value any

	// Traceback is the Lua stack at the point of failure.
	Traceback string

	err error
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Unwrap returns the host error the script raised, the context error that
// stopped it, or the interpreter error.
func (e *ScriptError) Unwrap() error {
	return e.err
}

// newScriptError converts an error returned by PCall.
func newScriptError(ctx context.Context, L *lua.LState, err error) *ScriptError {
	se := &ScriptError{Message: err.Error(), err: err}

	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return se
	}

	se.Traceback = apiErr.StackTrace
	if apiErr.Object != nil {
		se.Message = formatValue(L, apiErr.Object)
		se.Value = NewBridge(L).ToGoValue(apiErr.Object)
	}

	switch {
	case ctx != nil && ctx.Err() != nil:
		se.err = ctx.Err()
	case apiErr.Cause != nil:
		se.err = apiErr.Cause
	default:
		if hostErr, ok := se.Value.(error); ok {
			se.err = hostErr
		}
	}
	return se
}
