// Package js runs plugin.js plugins on the goja JavaScript runtime.
//
// Each run gets a fresh goja.Runtime with console, a CommonJS require over
// the plugin's scope, the liveplugin host module and the caller's bindings
// as globals. Dependency directives use line comments:
//
//	// add-to-classpath $LIBS/lodash
package js

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/dop251/goja"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// JavaScript plugin conventions.
const (
	Name            = "js"
	ScriptName      = "plugin.js"
	DirectivePrefix = "// " + runner.DirectiveToken
)

// HostFunc is a Go function callable from scripts. A returned error is
// thrown as a JavaScript exception.
type HostFunc func(args []any) (any, error)

// Loader runs JavaScript plugins. It implements runner.CodeLoader.
type Loader struct {
	logger        *slog.Logger
	output        io.Writer
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

// WithConsoleOutput sets where console writes.
func WithConsoleOutput(w io.Writer) LoaderOption {
	return func(l *Loader) {
		if w != nil {
			l.output = w
		}
	}
}

// WithMaxCallStackSize limits call depth; zero keeps goja's default.
func WithMaxCallStackSize(n int) LoaderOption {
	return func(l *Loader) {
		l.callStackSize = n
	}
}

// NewLoader creates a JavaScript code loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger: slog.Default(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRunner creates a runner.Engine for JavaScript plugins.
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
	src, err := os.ReadFile(scope.Script)
	if err != nil {
		return runner.EngineFailure(err)
	}
	prog, err := goja.Compile(scope.Script, string(src), false)
	if err != nil {
		var syntaxErr *goja.CompilerSyntaxError
		if errors.As(err, &syntaxErr) {
			return runner.CompileFailure(err)
		}
		return runner.EngineFailure(err)
	}

	vm, err := l.newRuntime(ctx, scope, bindings)
	if err != nil {
		return runner.EngineFailure(err)
	}

	if err := ctx.Err(); err != nil {
		return &runner.RunningFailure{Cause: &ScriptError{Message: err.Error(), err: err}}
	}
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunProgram(prog); err != nil {
		se := newScriptError(ctx, err)
		return &runner.RunningFailure{Cause: se, Stack: se.Stack}
	}
	return nil
}

func (l *Loader) newRuntime(ctx context.Context, scope *runner.Scope, bindings runner.Bindings) (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if l.callStackSize > 0 {
		vm.SetMaxCallStackSize(l.callStackSize)
	}

	if err := installConsole(vm, l.output); err != nil {
		return nil, err
	}

	host, err := hostModule(ctx, vm, scope, l.logger.With("plugin", scope.PluginID))
	if err != nil {
		return nil, err
	}
	mods := newModules(vm, scope)
	mods.define(HostModule, host)
	if err := vm.Set("require", mods.requireFrom(scope.Root)); err != nil {
		return nil, err
	}

	if err := bind(vm, bindings); err != nil {
		return nil, err
	}
	return vm, nil
}

// bind sets each binding as a global and collects them in the binding
// object, so both THIS_SCRIPT and binding.THIS_SCRIPT work.
func bind(vm *goja.Runtime, bindings runner.Bindings) error {
	obj := vm.NewObject()
	for name, value := range bindings {
		v := toValue(vm, value)
		if err := obj.Set(name, v); err != nil {
			return err
		}
		if err := vm.Set(name, v); err != nil {
			return err
		}
	}
	return vm.Set("binding", obj)
}

func toValue(vm *goja.Runtime, value any) goja.Value {
	switch fn := value.(type) {
	case HostFunc:
		return vm.ToValue(wrapHostFunc(vm, fn))
	case func(args []any) (any, error):
		return vm.ToValue(wrapHostFunc(vm, fn))
	default:
		return vm.ToValue(value)
	}
}

func wrapHostFunc(vm *goja.Runtime, fn HostFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		result, err := fn(args)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(result)
	}
}
