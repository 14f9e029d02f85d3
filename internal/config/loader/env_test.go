package loader

import (
	"reflect"
	"testing"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoader(DefaultPrefix).WithEnviron(environ(
		"LIVEPLUGIN_LOG_LEVEL=debug",
		"LIVEPLUGIN_CONCURRENCY=8",
		"LIVEPLUGIN_RUN_TIMEOUT=5s",
		"LIVEPLUGIN_RUNNERS=lua, js",
		"LIVEPLUGIN_PLUGIN_PATHS=/a:/b",
		"LIVEPLUGIN_LUA_CAPABILITIES=shell,filesystem.read",
		"OTHER_VAR=ignored",
	))

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	checks := map[string]any{
		"logging.level":    "debug",
		"concurrency":      int64(8),
		"run_timeout":      "5s",
		"runners":          []any{"lua", "js"},
		"plugin_paths":     []any{"/a", "/b"},
		"lua.capabilities": []any{"shell", "filesystem.read"},
	}
	for path, want := range checks {
		got, ok := GetByPath(config, path)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %#v, want %#v", path, got, want)
		}
	}
	if _, ok := config["other"]; ok {
		t.Error("unprefixed variables must be ignored")
	}
}

func TestEnvLoader_Environment(t *testing.T) {
	l := NewEnvLoader(DefaultPrefix).WithEnviron(environ(
		"LIVEPLUGIN_ENV_HOME=/h",
		"LIVEPLUGIN_ENV_Mixed_Case=1",
		"LIVEPLUGIN_ENV_=skipped",
	))

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := map[string]any{"HOME": "/h", "Mixed_Case": "1"}
	if got := config["environment"]; !reflect.DeepEqual(got, want) {
		t.Errorf("environment = %#v, want %#v", got, want)
	}
}

func TestEnvLoader_LoadUnmapped(t *testing.T) {
	l := NewEnvLoader(DefaultPrefix).WithEnviron(environ("LIVEPLUGIN_LUA_CALL_STACK_SIZE=32"))

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, ok := GetByPath(config, "lua.call_stack_size"); !ok || v != int64(32) {
		t.Errorf("lua.call_stack_size = %v, want 32", v)
	}
}

func TestEnvLoader_AddMapping(t *testing.T) {
	l := NewEnvLoader(DefaultPrefix).WithEnviron(environ("LIVEPLUGIN_LEVEL=warn"))
	l.AddMapping("LIVEPLUGIN_LEVEL", "logging.level")

	config, _ := l.Load()
	if v, _ := GetByPath(config, "logging.level"); v != "warn" {
		t.Errorf("logging.level = %v, want warn", v)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader(DefaultPrefix)

	tests := []struct {
		env      string
		expected string
	}{
		{"LIVEPLUGIN_LOGGING_LEVEL", "logging.level"},
		{"LIVEPLUGIN_LUA_CALL_STACK_SIZE", "lua.call_stack_size"},
		{"LIVEPLUGIN_CONFIG", "config"},
	}

	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.expected {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"FALSE", false},
		{"1", int64(1)},
		{"-42", int64(-42)},
		{"1.5", 1.5},
		{"30s", "30s"},
		{"[1,2]", []any{float64(1), float64(2)}},
		{"{bad", "{bad"},
		{"info", "info"},
	}

	for _, tt := range tests {
		if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
