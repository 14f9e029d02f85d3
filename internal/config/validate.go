package config

import "errors"

// SupportedRunners lists the runner names liveplugin ships, in default
// priority order.
var SupportedRunners = []string{"lua", "js"}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks every setting and joins all problems found.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, msg string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: msg})
	}

	if len(c.Runners) == 0 {
		invalid("runners", c.Runners, "at least one runner is required")
	}
	seen := make(map[string]bool, len(c.Runners))
	for _, name := range c.Runners {
		switch {
		case !contains(SupportedRunners, name):
			invalid("runners", name, "unknown runner")
		case seen[name]:
			invalid("runners", name, "duplicate runner")
		}
		seen[name] = true
	}

	for _, p := range c.PluginPaths {
		if p == "" {
			invalid("plugin_paths", p, "empty path")
		}
	}
	if c.RunTimeout < 0 {
		invalid("run_timeout", c.RunTimeout, "must not be negative")
	}
	if c.Concurrency < 1 {
		invalid("concurrency", c.Concurrency, "must be at least 1")
	}
	if c.Lua.CallStackSize < 0 {
		invalid("lua.call_stack_size", c.Lua.CallStackSize, "must not be negative")
	}
	if !contains(logLevels, c.Logging.Level) {
		invalid("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	if !contains(logFormats, c.Logging.Format) {
		invalid("logging.format", c.Logging.Format, "must be text or json")
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
