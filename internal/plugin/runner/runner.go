package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dshills/liveplugin/internal/plugin"
)

// Runner runs plugins written for one scripting language.
type Runner interface {
	// Name returns the runner name (e.g. "lua").
	Name() string

	// ScriptName returns the entry script file name (e.g. "plugin.lua").
	ScriptName() string

	// CanRunPlugin reports whether folder holds exactly one entry script.
	CanRunPlugin(folder string) bool

	// RunPlugin runs the plugin in folder. Failures go to the runner's
	// ErrorReporter; RunPlugin itself never fails.
	RunPlugin(ctx context.Context, folder, pluginID string, bindings Bindings)
}

// CodeLoader executes one entry script inside a scope. Implementations wrap a
// concrete interpreter.
type CodeLoader interface {
	// Name returns the language name.
	Name() string

	// ScriptName returns the entry script file name.
	ScriptName() string

	// DirectivePrefix returns the line prefix of dependency directives.
	DirectivePrefix() string

	// LoadAndRun builds an interpreter over scope, binds bindings and runs
	// scope.Script. It returns nil on success.
	LoadAndRun(ctx context.Context, scope *Scope, bindings Bindings) Failure
}

// Engine is the language-neutral Runner. It resolves the entry script,
// builds the scope from dependency directives and classifies the outcome of
// its CodeLoader.
type Engine struct {
	loader   CodeLoader
	reporter ErrorReporter
	env      Environment
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnvironment sets the variables interpolated into directives. The map
// is copied.
func WithEnvironment(vars map[string]string) Option {
	return func(e *Engine) {
		e.env = NewEnvironment(vars)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine running loader and reporting to reporter.
func NewEngine(loader CodeLoader, reporter ErrorReporter, opts ...Option) *Engine {
	e := &Engine{
		loader:   loader,
		reporter: reporter,
		env:      NewEnvironment(nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("runner", loader.Name())
	return e
}

// Name implements Runner.
func (e *Engine) Name() string {
	return e.loader.Name()
}

// ScriptName implements Runner.
func (e *Engine) ScriptName() string {
	return e.loader.ScriptName()
}

// Environment returns the engine's environment table.
func (e *Engine) Environment() Environment {
	return e.env
}

// CanRunPlugin implements Runner.
func (e *Engine) CanRunPlugin(folder string) bool {
	return plugin.CanRun(folder, e.loader.ScriptName())
}

// RunPlugin implements Runner.
func (e *Engine) RunPlugin(ctx context.Context, folder, pluginID string, bindings Bindings) {
	done := e.metrics.recordRun(e.Name())
	outcome := OutcomeSuccess
	defer func() { done(outcome) }()

	logger := e.logger.With("plugin", pluginID)

	fail := func(f Failure) {
		switch f := f.(type) {
		case *LoadingFailure:
			outcome = OutcomeLoadingError
			e.metrics.recordLoadingError(e.Name(), f.Stage)
			logger.Warn("plugin loading error", "stage", f.Stage, "error", f)
		case *RunningFailure:
			outcome = OutcomeRunningError
			logger.Warn("plugin running error", "error", f.Cause)
		}
		report(e.reporter, pluginID, f)
	}

	defer func() {
		if r := recover(); r != nil {
			fail(&RunningFailure{Cause: fmt.Errorf("%w: %v", ErrScriptPanic, r)})
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	script, err := plugin.FindSingleFile(folder, e.loader.ScriptName())
	if err != nil {
		fail(&LoadingFailure{
			Stage:  StageEngine,
			Reason: fmt.Sprintf("Couldn't find plugin script %s.", e.loader.ScriptName()),
			Err:    err,
		})
		return
	}

	root, err := filepath.Abs(folder)
	if err != nil {
		fail(EngineFailure(err))
		return
	}

	env := e.env.With(ThisScript, script)
	if env.Len() > 1 {
		logger.Debug("environment for dependency paths", "names", env.Names())
	}

	scope, missing, err := BuildScope(root, script, e.loader.DirectivePrefix(), env)
	if err != nil {
		var lf *LoadingFailure
		if !errors.As(err, &lf) {
			lf = ScanFailure(script, err)
		}
		fail(lf)
		return
	}
	scope.PluginID = pluginID
	for _, m := range missing {
		e.metrics.recordMissingDependency(e.Name())
		fail(m)
	}
	logger.Debug("execution scope", "entries", scope.Entries)

	if f := e.loader.LoadAndRun(ctx, scope, scriptBindings(bindings, script)); f != nil {
		fail(f)
		return
	}
	logger.Debug("plugin finished")
}
