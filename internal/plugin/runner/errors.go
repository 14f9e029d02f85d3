package runner

import "errors"

// Runner errors.
var (
	// ErrNoRunner is returned when no registered runner can run a folder.
	ErrNoRunner = errors.New("no runner can run plugin")

	// ErrDuplicateRunner is returned when registering a runner name twice.
	ErrDuplicateRunner = errors.New("runner already registered")

	// ErrScriptPanic wraps a panic recovered from a code loader.
	ErrScriptPanic = errors.New("script engine panic")
)
