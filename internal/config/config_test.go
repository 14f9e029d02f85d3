package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"pgregory.net/rapid"

	"github.com/dshills/liveplugin/internal/config/loader"
)

func noEnv() []string { return nil }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithOptions("", Options{Environ: noEnv})
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.PluginPaths, cfg.PluginPaths)
	assert.Equal(t, []string{"lua", "js"}, cfg.Runners)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, time.Duration(0), cfg.RunTimeout)
	assert.Equal(t, 256, cfg.Lua.CallStackSize)
	assert.Equal(t, Logging{Level: "info", Format: "text"}, cfg.Logging)
	assert.Equal(t, cfg.PluginPaths[0], cfg.Environment[PluginPathVar])
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadWithOptions(filepath.Join(t.TempDir(), "absent.toml"), Options{Environ: noEnv})
	require.NoError(t, err)
	assert.Equal(t, Default().Runners, cfg.Runners)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "liveplugin.toml", `
plugin_paths = ["/srv/plugins", "/opt/plugins"]
runners = ["lua"]
run_timeout = "30s"
concurrency = 2

[environment]
LIBS = "/opt/libs"

[lua]
capabilities = ["filesystem.read"]

[logging]
level = "DEBUG"
format = "json"
`)

	cfg, err := LoadWithOptions(path, Options{Environ: noEnv})
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/plugins", "/opt/plugins"}, cfg.PluginPaths)
	assert.Equal(t, []string{"lua"}, cfg.Runners)
	assert.Equal(t, 30*time.Second, cfg.RunTimeout)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, map[string]string{"LIBS": "/opt/libs", PluginPathVar: "/srv/plugins"}, cfg.Environment)
	assert.Equal(t, []string{"filesystem.read"}, cfg.Lua.Capabilities)
	assert.Equal(t, 256, cfg.Lua.CallStackSize, "unset keys keep defaults")
	assert.Equal(t, Logging{Level: "debug", Format: "json"}, cfg.Logging)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "liveplugin.yaml", `
plugin_paths: [/p]
environment:
  PLUGIN_PATH: /custom
  HOME: /h
lua:
  call_stack_size: 64
`)

	cfg, err := LoadWithOptions(path, Options{Environ: noEnv})
	require.NoError(t, err)

	assert.Equal(t, []string{"/p"}, cfg.PluginPaths)
	assert.Equal(t, "/custom", cfg.Environment[PluginPathVar], "explicit PLUGIN_PATH wins")
	assert.Equal(t, "/h", cfg.Environment["HOME"])
	assert.Equal(t, 64, cfg.Lua.CallStackSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "liveplugin.toml", `
concurrency = 2
[environment]
HOME = "/file"
`)

	cfg, err := LoadWithOptions(path, Options{Environ: func() []string {
		return []string{
			"LIVEPLUGIN_CONCURRENCY=6",
			"LIVEPLUGIN_ENV_HOME=/env",
			"LIVEPLUGIN_ENV_LIBS=/libs",
			"LIVEPLUGIN_RUN_TIMEOUT=1m",
			"LIVEPLUGIN_LUA_CAPABILITIES=shell",
		}
	}})
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Concurrency)
	assert.Equal(t, "/env", cfg.Environment["HOME"])
	assert.Equal(t, "/libs", cfg.Environment["LIBS"])
	assert.Equal(t, time.Minute, cfg.RunTimeout)
	assert.Equal(t, []string{"shell"}, cfg.Lua.Capabilities)
}

func TestLoadProcessEnvironment(t *testing.T) {
	t.Setenv("LIVEPLUGIN_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeConfig(t, "c.toml", `plugin_paths = ["~/plugins"]`)

	cfg, err := LoadWithOptions(path, Options{Environ: noEnv})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "plugins"), cfg.PluginPaths[0])
}

func TestLoadParseError(t *testing.T) {
	path := writeConfig(t, "c.toml", "runners = [")

	_, err := LoadWithOptions(path, Options{Environ: noEnv})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)

	var parseErr *loader.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Path)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "c.yaml", "run_timeout: soon\n")

	_, err := LoadWithOptions(path, Options{Environ: noEnv})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "c.toml", `concurrency = 0`)

	_, err := LoadWithOptions(path, Options{Environ: noEnv})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "concurrency", ve.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"no runners", func(c *Config) { c.Runners = nil }, []string{"runners"}},
		{"unknown runner", func(c *Config) { c.Runners = []string{"lua", "ruby"} }, []string{"runners"}},
		{"duplicate runner", func(c *Config) { c.Runners = []string{"js", "js"} }, []string{"runners"}},
		{"empty path", func(c *Config) { c.PluginPaths = []string{""} }, []string{"plugin_paths"}},
		{"negative timeout", func(c *Config) { c.RunTimeout = -time.Second }, []string{"run_timeout"}},
		{"stack size", func(c *Config) { c.Lua.CallStackSize = -1 }, []string{"lua.call_stack_size"}},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, []string{"logging.level"}},
		{"several", func(c *Config) {
			c.Concurrency = 0
			c.Logging.Format = "xml"
		}, []string{"concurrency", "logging.format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, field := range tt.fields {
				assert.Contains(t, err.Error(), "config: "+field+":")
			}
		})
	}
}

func TestConfigMapRoundTrip(t *testing.T) {
	capabilities := []string{"filesystem.read", "filesystem.write", "shell", "process.spawn", "unsafe"}

	rapid.Check(t, func(t *rapid.T) {
		cfg := &Config{
			PluginPaths: rapid.SliceOfN(rapid.StringMatching(`/[a-z]{1,8}`), 1, 3).Draw(t, "paths"),
			Environment: rapid.MapOf(
				rapid.StringMatching(`[A-Z][A-Z0-9_]{0,8}`),
				rapid.StringMatching(`[ -~]{0,20}`),
			).Draw(t, "env"),
			Runners:     rapid.SliceOfNDistinct(rapid.SampledFrom(SupportedRunners), 1, 2, rapid.ID[string]).Draw(t, "runners"),
			RunTimeout:  time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "timeout")),
			Concurrency: rapid.IntRange(1, 64).Draw(t, "concurrency"),
			Lua: Lua{
				Capabilities:  rapid.SliceOfN(rapid.SampledFrom(capabilities), 1, 3).Draw(t, "caps"),
				CallStackSize: rapid.IntRange(0, 4096).Draw(t, "stack"),
			},
			Logging: Logging{
				Level:  rapid.SampledFrom(logLevels).Draw(t, "level"),
				Format: rapid.SampledFrom(logFormats).Draw(t, "format"),
			},
		}

		m, err := cfg.toMap()
		if err != nil {
			t.Fatalf("toMap() error = %v", err)
		}
		got, err := fromMap(loader.Clone(m))
		if err != nil {
			t.Fatalf("fromMap() error = %v", err)
		}
		if len(cfg.Environment) == 0 {
			cfg.Environment = got.Environment
		}
		assert.Equal(t, cfg, got)
		assert.NoError(t, got.Validate())
	})
}

func TestLoggingNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Logging{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "plugin", "p")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", gjson.GetBytes(lines[0], "msg").String())
	assert.Equal(t, "p", gjson.GetBytes(lines[0], "plugin").String())

	buf.Reset()
	Logging{Level: "nonsense", Format: "text"}.NewLogger(&buf).Info("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestLoadBindings(t *testing.T) {
	path := writeConfig(t, "bindings.json", `{"editor": {"name": "ed"}, "count": 5, "tags": ["a"], "on": true}`)

	b, err := LoadBindings(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ed"}, b["editor"])
	assert.Equal(t, float64(5), b["count"])
	assert.Equal(t, []any{"a"}, b["tags"])
	assert.Equal(t, true, b["on"])
}

func TestLoadBindingsErrors(t *testing.T) {
	_, err := LoadBindings(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrBindings)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ParseBindings([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrBindings)

	_, err = ParseBindings([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrBindings)
}
