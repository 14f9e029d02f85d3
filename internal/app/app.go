// Package app assembles liveplugin: configuration, logging, metrics,
// error reporting, the script runners and plugin discovery. The CLI is a
// thin layer over an *App.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/liveplugin/internal/config"
	"github.com/dshills/liveplugin/internal/plugin"
	"github.com/dshills/liveplugin/internal/plugin/js"
	"github.com/dshills/liveplugin/internal/plugin/lua"
	"github.com/dshills/liveplugin/internal/plugin/runner"
	"github.com/dshills/liveplugin/internal/report"
)

// Options configures an App.
type Options struct {
	// Config holds settings; nil uses config.Default().
	Config *config.Config

	// Logger receives application and plugin logs; nil builds one from
	// Config.Logging writing to LogOutput.
	Logger *slog.Logger

	// LogOutput is where a built logger writes; nil is os.Stderr.
	LogOutput io.Writer

	// Output receives script print and console output; nil is os.Stdout.
	Output io.Writer

	// Registry collects metrics; nil creates a private registry.
	Registry *prometheus.Registry

	// Reporters receive every report next to the built-in collector and
	// log reporter.
	Reporters []runner.ErrorReporter
}

// App is an assembled liveplugin instance. It is safe for concurrent use.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	output    io.Writer
	registry  *prometheus.Registry
	collector *report.Collector
	runners   *runner.Registry
	discovery *plugin.Loader
}

// New assembles an App.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	logger := opts.Logger
	if logger == nil {
		w := opts.LogOutput
		if w == nil {
			w = os.Stderr
		}
		logger = cfg.Logging.NewLogger(w)
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		output:    output,
		registry:  reg,
		collector: report.NewCollector(),
	}

	reporters := append([]runner.ErrorReporter{a.collector, report.NewLogReporter(logger)}, opts.Reporters...)
	reporter := report.Tee(reporters...)

	engineOpts := []runner.Option{
		runner.WithEnvironment(cfg.Environment),
		runner.WithLogger(logger),
		runner.WithMetrics(runner.NewMetrics(reg)),
	}

	var runners []runner.Runner
	for _, name := range cfg.Runners {
		rn, err := a.newRunner(name, reporter, engineOpts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
		}
		runners = append(runners, rn)
	}
	registry, err := runner.NewRegistry(runners...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	a.runners = registry

	a.discovery = plugin.NewLoader(
		plugin.WithPaths(cfg.PluginPaths...),
		plugin.WithScriptNames(a.runners.ScriptNames()...),
	)

	logger.Debug("application ready",
		"runners", a.runners.ScriptNames(),
		"plugin_paths", cfg.PluginPaths,
	)
	return a, nil
}

func (a *App) newRunner(name string, reporter runner.ErrorReporter, engineOpts []runner.Option) (runner.Runner, error) {
	switch name {
	case lua.Name:
		caps := make([]lua.Capability, len(a.cfg.Lua.Capabilities))
		for i, c := range a.cfg.Lua.Capabilities {
			caps[i] = lua.Capability(c)
		}
		return lua.NewRunner(reporter, []lua.LoaderOption{
			lua.WithLogger(a.logger),
			lua.WithPrintOutput(a.output),
			lua.WithGrantedCapabilities(caps...),
			lua.WithStackSize(a.cfg.Lua.CallStackSize),
		}, engineOpts...), nil
	case js.Name:
		return js.NewRunner(reporter, []js.LoaderOption{
			js.WithLogger(a.logger),
			js.WithConsoleOutput(a.output),
		}, engineOpts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRunner, name)
	}
}

// Config returns the application configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Collector returns the collector holding every report of this App.
func (a *App) Collector() *report.Collector { return a.collector }

// Runners returns the runner registry.
func (a *App) Runners() *runner.Registry { return a.runners }

// Metrics returns the metrics registry.
func (a *App) Metrics() *prometheus.Registry { return a.registry }

// WriteMetrics writes the metrics registry to path in the Prometheus text
// format.
func (a *App) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return NewOperationError("write metrics", path, err)
	}
	return nil
}
