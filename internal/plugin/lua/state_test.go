package lua

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func writeLua(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewState(t *testing.T) {
	state := newTestState(t)

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.LuaState() == nil {
		t.Error("NewState() LuaState() is nil")
	}
	if state.Sandbox() == nil {
		t.Error("Sandbox() returned nil")
	}
}

func TestStateDoString(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Errorf("DoString() error = %v", err)
	}

	v := state.GetGlobal("x")
	if num, ok := v.(glua.LNumber); !ok || float64(num) != 2 {
		t.Errorf("x = %v, want 2", v)
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(`invalid lua code !!!`); err == nil {
		t.Error("DoString() with invalid code should return error")
	}
}

func TestStatePrint(t *testing.T) {
	var out bytes.Buffer
	state := newTestState(t, WithOutput(&out))

	if err := state.DoString(`print("a", 1, true, nil)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got, want := out.String(), "a\t1\ttrue\tnil\n"; got != want {
		t.Errorf("print output = %q, want %q", got, want)
	}
}

func TestStateSearchDirs(t *testing.T) {
	root := t.TempDir()
	libs := t.TempDir()
	writeLua(t, root, "helper.lua", `return { name = "helper" }`)
	writeLua(t, libs, "json/init.lua", `return { name = "json" }`)

	state := newTestState(t, WithSearchDirs(root, libs))

	if err := state.DoString(`
		a = require("helper").name
		b = require("json").name
	`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := state.GetGlobal("a").String(); got != "helper" {
		t.Errorf("require(helper).name = %q, want helper", got)
	}
	if got := state.GetGlobal("b").String(); got != "json" {
		t.Errorf("require(json).name = %q, want json", got)
	}

	pkg := state.GetGlobal("package").(*glua.LTable)
	path := pkg.RawGetString("path").String()
	if !strings.HasPrefix(path, filepath.Join(root, "?.lua")) {
		t.Errorf("package.path = %q, want it to start with %q", path, filepath.Join(root, "?.lua"))
	}
}

func TestStateModuleFiles(t *testing.T) {
	file := writeLua(t, t.TempDir(), "strutil.lua", `return { up = string.upper }`)
	ignored := writeLua(t, t.TempDir(), "data.txt", `not lua`)

	state := newTestState(t, WithModuleFiles(file, ignored))

	if err := state.DoString(`v = require("strutil").up("x")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := state.GetGlobal("v").String(); got != "X" {
		t.Errorf("v = %q, want X", got)
	}
	if err := state.DoString(`require("data")`); err == nil {
		t.Error("require(data) should fail for non-Lua files")
	}
}

func TestStateRequireOutsideScope(t *testing.T) {
	outside := t.TempDir()
	writeLua(t, outside, "secret.lua", `return 1`)

	state := newTestState(t, WithSearchDirs(t.TempDir()))
	if err := state.DoString(`require("secret")`); err == nil {
		t.Error("require should not find modules outside the search dirs")
	}
}

func TestStateCompileAndRun(t *testing.T) {
	dir := t.TempDir()
	good := writeLua(t, dir, "good.lua", `ran = true`)
	bad := writeLua(t, dir, "bad.lua", `if then`)

	state := newTestState(t)

	fn, err := state.Compile(good)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if state.GetGlobal("ran") != glua.LNil {
		t.Error("Compile() should not run the chunk")
	}
	if err := state.Run(fn); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.GetGlobal("ran") != glua.LTrue {
		t.Error("Run() did not run the chunk")
	}

	_, err = state.Compile(bad)
	var apiErr *glua.ApiError
	if !errors.As(err, &apiErr) || apiErr.Type != glua.ApiErrorSyntax {
		t.Errorf("Compile(bad) error = %v, want syntax ApiError", err)
	}

	_, err = state.Compile(filepath.Join(dir, "missing.lua"))
	if !errors.As(err, &apiErr) || apiErr.Type != glua.ApiErrorFile {
		t.Errorf("Compile(missing) error = %v, want file ApiError", err)
	}
}

func TestStateContext(t *testing.T) {
	state := newTestState(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	state.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- state.DoString(`while true do end`) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("infinite loop should be stopped by the context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("context did not stop the script")
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}

	state.Close()
	if !state.IsClosed() {
		t.Error("Close() did not close state")
	}
	state.Close()

	if err := state.DoString(`x = 1`); err != ErrStateClosed {
		t.Errorf("DoString() on closed state error = %v, want ErrStateClosed", err)
	}
	if _, err := state.Compile("x.lua"); err != ErrStateClosed {
		t.Errorf("Compile() on closed state error = %v, want ErrStateClosed", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() on closed state = %v, want nil", v)
	}
}

func TestStateCallStackSize(t *testing.T) {
	state := newTestState(t, WithCallStackSize(16))

	err := state.DoString(`
		local function deep(n) if n == 0 then return 0 end return 1 + deep(n - 1) end
		deep(100)
	`)
	if err == nil {
		t.Error("deep recursion should overflow a 16 frame stack")
	}
}
