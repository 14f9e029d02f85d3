package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Descriptor identifies one runnable plugin.
type Descriptor struct {
	// ID is the plugin identifier, the folder name by default.
	ID string

	// Folder is the absolute path of the plugin root.
	Folder string

	// Script is the absolute path of the entry script.
	Script string

	// ScriptName is the entry script file name (e.g. "plugin.lua").
	ScriptName string
}

// FindSingleFile searches the folder tree rooted at folder for regular files
// named exactly name. It returns the absolute path of the only match.
//
// Zero matches yield ErrNoEntryPoint, several matches a
// *MultipleEntryPointsError.
func FindSingleFile(folder, name string) (string, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", folder, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("reading plugin folder: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && d.Name() == name {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", root, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s in %s", ErrNoEntryPoint, name, root)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &MultipleEntryPointsError{Name: name, Paths: matches}
	}
}

// CanRun reports whether folder holds exactly one entry script called name.
// Filesystem errors count as "not runnable".
func CanRun(folder, name string) bool {
	_, err := FindSingleFile(folder, name)
	return err == nil
}

// Describe builds a Descriptor for the plugin in folder.
func Describe(id, folder, scriptName string) (Descriptor, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return Descriptor{}, fmt.Errorf("resolving %s: %w", folder, err)
	}
	script, err := FindSingleFile(abs, scriptName)
	if err != nil {
		return Descriptor{}, err
	}
	if id == "" {
		id = filepath.Base(abs)
	}
	return Descriptor{
		ID:         id,
		Folder:     abs,
		Script:     script,
		ScriptName: scriptName,
	}, nil
}
