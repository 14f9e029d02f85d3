package runner

import (
	"fmt"
	"sync"
)

// Registry holds runners in registration order.
type Registry struct {
	mu      sync.RWMutex
	runners []Runner
	byName  map[string]Runner
}

// NewRegistry creates a Registry holding runners.
func NewRegistry(runners ...Runner) (*Registry, error) {
	r := &Registry{byName: make(map[string]Runner)}
	for _, rn := range runners {
		if err := r.Register(rn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a runner. Names must be unique.
func (r *Registry) Register(rn Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[rn.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRunner, rn.Name())
	}
	r.byName[rn.Name()] = rn
	r.runners = append(r.runners, rn)
	return nil
}

// Get returns the runner called name.
func (r *Registry) Get(name string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.byName[name]
	return rn, ok
}

// Runners returns all runners in registration order.
func (r *Registry) Runners() []Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Runner(nil), r.runners...)
}

// ScriptNames returns the entry script names in registration order.
func (r *Registry) ScriptNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for _, rn := range r.runners {
		names = append(names, rn.ScriptName())
	}
	return names
}

// ForScript returns the runner whose entry script is scriptName.
func (r *Registry) ForScript(scriptName string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rn := range r.runners {
		if rn.ScriptName() == scriptName {
			return rn, true
		}
	}
	return nil, false
}

// RunnerFor returns the first runner that can run folder.
func (r *Registry) RunnerFor(folder string) (Runner, error) {
	for _, rn := range r.Runners() {
		if rn.CanRunPlugin(folder) {
			return rn, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRunner, folder)
}
