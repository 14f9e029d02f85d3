// Package config loads liveplugin settings.
//
// Settings come from three layers merged in order: built-in defaults, an
// optional TOML or YAML file, and LIVEPLUGIN_ environment variables.
//
//	plugin_paths = ["~/.liveplugin/plugins"]
//	runners      = ["lua", "js"]
//	run_timeout  = "30s"
//	concurrency  = 4
//
//	[environment]
//	LIBS = "/opt/libs"
//
//	[lua]
//	capabilities    = ["filesystem.read"]
//	call_stack_size = 256
//
//	[logging]
//	level  = "info"
//	format = "text"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/liveplugin/internal/config/loader"
)

// PluginPathVar is the environment-table entry pointing at the first
// plugin search path.
const PluginPathVar = "PLUGIN_PATH"

// Config holds every liveplugin setting.
type Config struct {
	// PluginPaths are the directories searched for plugin folders.
	PluginPaths []string `yaml:"plugin_paths"`
	// Environment is the table directives are resolved against.
	Environment map[string]string `yaml:"environment"`
	// Runners lists enabled script runners in priority order.
	Runners []string `yaml:"runners"`
	// RunTimeout bounds a single run; zero means no limit.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// Concurrency bounds parallel runs in run-all.
	Concurrency int     `yaml:"concurrency"`
	Lua         Lua     `yaml:"lua"`
	Logging     Logging `yaml:"logging"`
}

// Lua configures the Lua runner.
type Lua struct {
	Capabilities  []string `yaml:"capabilities"`
	CallStackSize int      `yaml:"call_stack_size"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PluginPaths: []string{defaultPluginPath()},
		Environment: map[string]string{},
		Runners:     append([]string(nil), SupportedRunners...),
		Concurrency: 4,
		Lua:         Lua{CallStackSize: 256},
		Logging:     Logging{Level: "info", Format: "text"},
	}
}

func defaultPluginPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".liveplugin", "plugins")
	}
	return filepath.Join(home, ".liveplugin", "plugins")
}

// Options controls how Load reads its sources.
type Options struct {
	// FS reads the config file; nil uses the OS.
	FS loader.FileSystem
	// Environ lists environment variables; nil uses os.Environ.
	Environ func() []string
	// Prefix overrides loader.DefaultPrefix.
	Prefix string
}

// Load reads the file at path, applies environment overrides and validates
// the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, Options{})
}

// LoadWithOptions is Load with explicit sources.
func LoadWithOptions(path string, opts Options) (*Config, error) {
	if opts.FS == nil {
		opts.FS = loader.DefaultFS()
	}
	if opts.Prefix == "" {
		opts.Prefix = loader.DefaultPrefix
	}

	merged, err := Default().toMap()
	if err != nil {
		return nil, err
	}

	if path != "" {
		fileMap, err := loader.ForPath(opts.FS, path).Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		merged = loader.DeepMerge(merged, fileMap)
	}

	env := loader.NewEnvLoader(opts.Prefix)
	if opts.Environ != nil {
		env.WithEnviron(opts.Environ)
	}
	envMap, err := env.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	merged = loader.DeepMerge(merged, envMap)

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toMap renders c in the shape file loaders produce.
func (c *Config) toMap() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i, p := range c.PluginPaths {
		c.PluginPaths[i] = expandHome(p)
	}
	if c.Environment == nil {
		c.Environment = map[string]string{}
	}
	if _, ok := c.Environment[PluginPathVar]; !ok && len(c.PluginPaths) > 0 {
		c.Environment[PluginPathVar] = c.PluginPaths[0]
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
