package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Plugin discovery errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned when a plugin folder holds no entry script.
	ErrNoEntryPoint = errors.New("plugin has no entry script")

	// ErrNotDirectory is returned when a plugin path is not a directory.
	ErrNotDirectory = errors.New("plugin path is not a directory")
)

// MultipleEntryPointsError is returned when a plugin folder tree contains
// more than one file with the entry script name.
type MultipleEntryPointsError struct {
	Name  string
	Paths []string
}

func (e *MultipleEntryPointsError) Error() string {
	return fmt.Sprintf("found several %s files: %s", e.Name, strings.Join(e.Paths, ", "))
}
