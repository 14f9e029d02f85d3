package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader discovers plugins in the filesystem.
type Loader struct {
	// Search paths for plugins (checked in order)
	paths []string

	// Entry script names recognized by the available runners, in priority order
	scriptNames []string

	// Discovered plugins cache
	discovered map[string]*PluginInfo
}

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	Descriptor
	Error error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// WithScriptNames sets the recognized entry script names.
func WithScriptNames(names ...string) LoaderOption {
	return func(l *Loader) {
		l.scriptNames = names
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:       DefaultPluginPaths(),
		scriptNames: []string{"plugin.lua"},
		discovered:  make(map[string]*PluginInfo),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 2)

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".liveplugin", "plugins"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".liveplugin", "plugins"))
	}

	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// ScriptNames returns the recognized entry script names.
func (l *Loader) ScriptNames() []string {
	return l.scriptNames
}

// AddPath adds a search path.
func (l *Loader) AddPath(path string) {
	l.paths = append(l.paths, path)
}

// Discover finds all plugins in the search paths.
// Returns plugins sorted by ID.
func (l *Loader) Discover() ([]*PluginInfo, error) {
	l.discovered = make(map[string]*PluginInfo)

	for _, basePath := range l.paths {
		if err := l.discoverInPath(basePath); err != nil {
			return nil, err
		}
	}

	plugins := make([]*PluginInfo, 0, len(l.discovered))
	for _, info := range l.discovered {
		plugins = append(plugins, info)
	}

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].ID < plugins[j].ID
	})

	return plugins, nil
}

// discoverInPath finds plugins in a single directory.
func (l *Loader) discoverInPath(basePath string) error {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if path doesn't exist
		}
		return fmt.Errorf("reading plugin path %s: %w", basePath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info := l.inspectPlugin(entry.Name(), filepath.Join(basePath, entry.Name()))

		// Don't override earlier discoveries (first path wins)
		if _, exists := l.discovered[info.ID]; !exists {
			l.discovered[info.ID] = info
		}
	}

	return nil
}

// inspectPlugin examines a plugin directory and returns its info.
// The first script name with a single match wins.
func (l *Loader) inspectPlugin(id, path string) *PluginInfo {
	info := &PluginInfo{Descriptor: Descriptor{ID: id, Folder: path}}
	if abs, err := filepath.Abs(path); err == nil {
		info.Folder = abs
	}

	var firstErr error
	for _, name := range l.scriptNames {
		d, err := Describe(id, path, name)
		if err == nil {
			info.Descriptor = d
			return info
		}
		if firstErr == nil && !errors.Is(err, ErrNoEntryPoint) {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("%w: expected one of %s", ErrNoEntryPoint, strings.Join(l.scriptNames, ", "))
	}
	info.Error = firstErr
	return info
}

// Get returns info for a specific plugin by ID.
func (l *Loader) Get(id string) (*PluginInfo, bool) {
	info, ok := l.discovered[id]
	return info, ok
}

// FindPlugin searches for a plugin by ID across all paths.
// Returns the first match found.
func (l *Loader) FindPlugin(id string) (*PluginInfo, error) {
	if info, ok := l.discovered[id]; ok {
		return info, nil
	}

	for _, basePath := range l.paths {
		pluginPath := filepath.Join(basePath, id)
		if stat, err := os.Stat(pluginPath); err == nil && stat.IsDir() {
			info := l.inspectPlugin(id, pluginPath)
			if info.Error == nil {
				l.discovered[id] = info
				return info, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
}

// ListNames returns the IDs of all discovered plugins.
func (l *Loader) ListNames() []string {
	names := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of discovered plugins.
func (l *Loader) Count() int {
	return len(l.discovered)
}

// Errors returns all plugins that have errors.
func (l *Loader) Errors() []*PluginInfo {
	var errored []*PluginInfo
	for _, info := range l.discovered {
		if info.Error != nil {
			errored = append(errored, info)
		}
	}
	sort.Slice(errored, func(i, j int) bool {
		return errored[i].ID < errored[j].ID
	})
	return errored
}

// Runnable returns the discovered plugins that have an entry script.
func (l *Loader) Runnable() []*PluginInfo {
	var ok []*PluginInfo
	for _, info := range l.discovered {
		if info.Error == nil {
			ok = append(ok, info)
		}
	}
	sort.Slice(ok, func(i, j int) bool {
		return ok[i].ID < ok[j].ID
	})
	return ok
}
