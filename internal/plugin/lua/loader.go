package lua

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// Lua plugin conventions.
const (
	Name            = "lua"
	ScriptName      = "plugin.lua"
	DirectivePrefix = "-- " + runner.DirectiveToken
)

// Loader runs Lua plugins. It implements runner.CodeLoader; every call to
// LoadAndRun gets a fresh State, so one Loader serves concurrent runs.
type Loader struct {
	logger        *slog.Logger
	output        io.Writer
	capabilities  []Capability
	callStackSize int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger behind the liveplugin.log functions.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPrintOutput sets where print writes.
func WithPrintOutput(w io.Writer) LoaderOption {
	return func(l *Loader) {
		if w != nil {
			l.output = w
		}
	}
}

// WithGrantedCapabilities grants capabilities to every plugin run.
func WithGrantedCapabilities(caps ...Capability) LoaderOption {
	return func(l *Loader) {
		l.capabilities = append(l.capabilities, caps...)
	}
}

// WithStackSize sets the Lua call stack depth of each run.
func WithStackSize(n int) LoaderOption {
	return func(l *Loader) {
		l.callStackSize = n
	}
}

// NewLoader creates a Lua code loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:        slog.Default(),
		output:        os.Stdout,
		callStackSize: DefaultCallStackSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRunner creates a runner.Engine for Lua plugins.
func NewRunner(reporter runner.ErrorReporter, loaderOpts []LoaderOption, engineOpts ...runner.Option) *runner.Engine {
	return runner.NewEngine(NewLoader(loaderOpts...), reporter, engineOpts...)
}

// Name implements runner.CodeLoader.
func (l *Loader) Name() string { return Name }

// ScriptName implements runner.CodeLoader.
func (l *Loader) ScriptName() string { return ScriptName }

// DirectivePrefix implements runner.CodeLoader.
func (l *Loader) DirectivePrefix() string { return DirectivePrefix }

// LoadAndRun implements runner.CodeLoader.
func (l *Loader) LoadAndRun(ctx context.Context, scope *runner.Scope, bindings runner.Bindings) runner.Failure {
	state, err := NewState(
		WithSearchDirs(scope.Dirs()...),
		WithModuleFiles(scope.Files()...),
		WithOutput(l.output),
		WithCapabilities(l.capabilities...),
		WithCallStackSize(l.callStackSize),
	)
	if err != nil {
		return runner.EngineFailure(err)
	}
	defer state.Close()

	logger := l.logger.With("plugin", scope.PluginID)
	state.PreloadModule(HostModule, hostModule(scope, state.sandbox.Capabilities(), logger))
	bind(state, bindings)

	fn, err := state.Compile(scope.Script)
	if err != nil {
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) && apiErr.Type == lua.ApiErrorSyntax {
			return runner.CompileFailure(err)
		}
		return runner.EngineFailure(err)
	}

	state.SetContext(ctx)
	if err := state.Run(fn); err != nil {
		se := newScriptError(ctx, state.LuaState(), err)
		return &runner.RunningFailure{Cause: se, Stack: se.Traceback}
	}
	return nil
}

// bind sets each binding as a global and collects them in the binding
// table, so both THIS_SCRIPT and binding.THIS_SCRIPT work.
func bind(state *State, bindings runner.Bindings) {
	L := state.LuaState()
	bridge := NewBridge(L)
	table := L.NewTable()
	for name, value := range bindings {
		lv := bridge.ToLuaValue(value)
		table.RawSetString(name, lv)
		state.SetGlobal(name, lv)
	}
	state.SetGlobal("binding", table)
}
