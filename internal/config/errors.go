package config

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad indicates a configuration source could not be read or decoded.
	ErrLoad = errors.New("config: load failed")

	// ErrInvalid indicates a configuration value failed validation.
	ErrInvalid = errors.New("config: invalid value")

	// ErrBindings indicates a bindings file could not be used.
	ErrBindings = errors.New("config: invalid bindings")
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s (got %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}
