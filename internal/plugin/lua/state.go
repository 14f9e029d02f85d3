package lua

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// DefaultCallStackSize is the call stack depth of a new state.
const DefaultCallStackSize = 256

// State wraps gopher-lua with the module search scope and sandbox of one
// plugin run.
//
// gopher-lua's LState is not goroutine-safe. The mutex protects against
// concurrent access from Go code; a State is meant to serve a single run.
type State struct {
	L *lua.LState

	mu sync.Mutex

	dirs          []string
	files         []string
	output        io.Writer
	capabilities  []Capability
	callStackSize int

	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithSearchDirs sets the directories searched by require. Each directory
// contributes "<dir>/?.lua" and "<dir>/?/init.lua" to package.path.
func WithSearchDirs(dirs ...string) StateOption {
	return func(s *State) {
		s.dirs = append(s.dirs, dirs...)
	}
}

// WithModuleFiles preloads single Lua files as modules named after their
// file stem, so "-- add-to-classpath lib/json.lua" makes require("json")
// work.
func WithModuleFiles(files ...string) StateOption {
	return func(s *State) {
		s.files = append(s.files, files...)
	}
}

// WithOutput sets the writer used by print.
func WithOutput(w io.Writer) StateOption {
	return func(s *State) {
		if w != nil {
			s.output = w
		}
	}
}

// WithCapabilities grants sandbox capabilities.
func WithCapabilities(caps ...Capability) StateOption {
	return func(s *State) {
		s.capabilities = append(s.capabilities, caps...)
	}
}

// WithCallStackSize sets the Lua call stack depth.
func WithCallStackSize(n int) StateOption {
	return func(s *State) {
		if n > 0 {
			s.callStackSize = n
		}
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		output:        os.Stdout,
		callStackSize: DefaultCallStackSize,
	}
	for _, opt := range opts {
		opt(state)
	}

	for _, c := range state.capabilities {
		if !c.Valid() {
			return nil, &CapabilityError{Capability: c}
		}
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: state.callStackSize,
	})
	state.L = L

	openSafeLibraries(L)
	state.installPrint()

	if err := state.installSearchPath(); err != nil {
		L.Close()
		return nil, err
	}

	state.sandbox = NewSandbox(L, state.output)
	state.sandbox.Install()
	for _, c := range state.capabilities {
		state.sandbox.Grant(c)
	}

	return state, nil
}

// openSafeLibraries opens the Lua standard libraries that do not reach
// outside the process. io, os and debug are granted through capabilities.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	lua.OpenCoroutine(L)
}

// installPrint routes print to the state output.
func (s *State) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = formatValue(L, L.Get(i))
		}
		fmt.Fprintln(s.output, strings.Join(parts, "\t"))
		return 0
	}))
}

// installSearchPath limits package.path to the scope directories and
// preloads module files.
func (s *State) installSearchPath() error {
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("package library not loaded")
	}

	patterns := make([]string, 0, len(s.dirs)*2)
	for _, dir := range s.dirs {
		patterns = append(patterns,
			filepath.Join(dir, "?.lua"),
			filepath.Join(dir, "?", "init.lua"),
		)
	}
	s.L.SetField(pkg, "path", lua.LString(strings.Join(patterns, ";")))
	s.L.SetField(pkg, "cpath", lua.LString(""))

	for _, file := range s.files {
		if filepath.Ext(file) != ".lua" {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(file), ".lua")
		s.L.PreloadModule(name, fileModule(file))
	}
	return nil
}

// fileModule returns a loader that runs path and returns its result.
func fileModule(path string) lua.LGFunction {
	return func(L *lua.LState) int {
		fn, err := L.LoadFile(path)
		if err != nil {
			L.RaiseError("loading module %s: %s", path, err.Error())
			return 0
		}
		L.Push(fn)
		L.Call(0, 1)
		return 1
	}
}

// SetContext makes running code stop with an error once ctx is done.
func (s *State) SetContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx == nil {
		return
	}
	s.L.SetContext(ctx)
}

// Compile loads the file at path without running it.
func (s *State) Compile(path string) (*lua.LFunction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	return s.L.LoadFile(path)
}

// Run calls fn with no arguments.
func (s *State) Run(fn *lua.LFunction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	top := s.L.GetTop()
	s.L.Push(fn)
	err := s.doWithRecovery(func() error {
		return s.L.PCall(0, lua.MultRet, nil)
	})
	s.L.SetTop(top)
	return err
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", runner.ErrScriptPanic, r)
		}
	}()
	return fn()
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// PreloadModule registers a module that require(name) builds with loader.
func (s *State) PreloadModule(name string, loader lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.PreloadModule(name, loader)
}

// LuaState returns the underlying gopher-lua state. Direct access bypasses
// the mutex.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Close releases the Lua state and any files opened by the script.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	err := s.sandbox.closeFiles()
	s.L.Close()
	s.closed = true
	return err
}
