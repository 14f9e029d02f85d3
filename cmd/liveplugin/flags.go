package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/dshills/liveplugin/internal/app"
	"github.com/dshills/liveplugin/internal/config"
	"github.com/dshills/liveplugin/internal/plugin/runner"
	"github.com/dshills/liveplugin/internal/report"
)

// runFlags configure commands that run plugins.
type runFlags struct {
	binds        []string
	bindingsFile string
	env          []string
	timeout      time.Duration
	reportFormat string
	metricsPath  string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVar(&f.binds, "bind", nil, "Script binding NAME=VALUE; JSON values are decoded (repeatable)")
	fs.StringVar(&f.bindingsFile, "bindings", "", "JSON file with an object of script bindings")
	fs.StringArrayVar(&f.env, "env", nil, "Directive variable NAME=VALUE (repeatable)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Limit each run; 0 keeps the configured run_timeout")
	fs.StringVar(&f.reportFormat, "report", "text", "Report format (text, json)")
	fs.StringVar(&f.metricsPath, "metrics", "", "Write Prometheus metrics to this file after running")
}

// apply folds the flags into cfg.
func (f *runFlags) apply(cfg *config.Config) error {
	for _, kv := range f.env {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --env %q: want NAME=VALUE", kv)
		}
		cfg.Environment[name] = value
	}
	if f.timeout > 0 {
		cfg.RunTimeout = f.timeout
	}
	switch f.reportFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid --report %q: want text or json", f.reportFormat)
	}
	return nil
}

// bindings merges the bindings file with --bind values; --bind wins.
func (f *runFlags) bindings() (runner.Bindings, error) {
	b := runner.Bindings{}
	if f.bindingsFile != "" {
		fromFile, err := config.LoadBindings(f.bindingsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			b[k] = v
		}
	}
	for _, kv := range f.binds {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --bind %q: want NAME=VALUE", kv)
		}
		b[name] = parseBindingValue(value)
	}
	return b, nil
}

// parseBindingValue decodes JSON scalars, arrays and objects and keeps
// anything else as a string.
func parseBindingValue(s string) any {
	if s != "" && gjson.Valid(s) {
		return gjson.Parse(s).Value()
	}
	return s
}

// finish prints the report, writes metrics and turns reported errors into
// errReported.
func (f *runFlags) finish(w io.Writer, a *app.App) error {
	c := a.Collector()
	if c.HasErrors() {
		if err := writeReport(w, c, f.reportFormat); err != nil {
			return err
		}
	}
	if f.metricsPath != "" {
		if err := a.WriteMetrics(f.metricsPath); err != nil {
			return err
		}
	}
	if c.HasErrors() {
		return errReported
	}
	return nil
}

func writeReport(w io.Writer, c *report.Collector, format string) error {
	if format == "json" {
		data, err := c.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return c.WriteText(w)
}
