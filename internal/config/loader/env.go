package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// DefaultPrefix is the prefix of liveplugin environment variables.
const DefaultPrefix = "LIVEPLUGIN_"

// EnvSection names the variables that add entries to the plugin
// environment table: LIVEPLUGIN_ENV_HOME=/home/me sets environment.HOME.
const EnvSection = "ENV_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "LIVEPLUGIN_")
	mapping map[string]string // Env var -> config path
	lists   map[string]string // Config path -> list separator
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "LIVEPLUGIN_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lists: map[string]string{
			"plugin_paths":     string(os.PathListSeparator),
			"runners":          ",",
			"lua.capabilities": ",",
		},
		environ: os.Environ,
	}
}

// WithEnviron replaces the variable source, os.Environ by default.
func (l *EnvLoader) WithEnviron(environ func() []string) *EnvLoader {
	l.environ = environ
	return l
}

func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "PLUGIN_PATHS":     "plugin_paths",
		prefix + "RUNNERS":          "runners",
		prefix + "RUN_TIMEOUT":      "run_timeout",
		prefix + "CONCURRENCY":      "concurrency",
		prefix + "LOG_LEVEL":        "logging.level",
		prefix + "LOG_FORMAT":       "logging.format",
		prefix + "LUA_CAPABILITIES": "lua.capabilities",
		prefix + "LUA_STACK_SIZE":   "lua.call_stack_size",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		if path, mapped := l.mapping[name]; mapped {
			if sep, isList := l.lists[path]; isList {
				SetByPath(config, path, splitList(value, sep))
			} else {
				SetByPath(config, path, parseValue(value))
			}
			continue
		}

		rest := strings.TrimPrefix(name, l.prefix)
		if varName, isEnv := strings.CutPrefix(rest, EnvSection); isEnv && varName != "" {
			env, _ := config["environment"].(map[string]any)
			if env == nil {
				env = make(map[string]any)
				config["environment"] = env
			}
			env[varName] = value
			continue
		}

		if path := l.envToPath(name); path != "" {
			SetByPath(config, path, parseValue(value))
		}
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts LIVEPLUGIN_LUA_CALL_STACK_SIZE to lua.call_stack_size.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + setting
}

func splitList(s, sep string) []any {
	var out []any
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseValue attempts to parse the string value into an appropriate type.
// Durations stay strings and are decoded by the config layer.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}
