package js

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// modules implements CommonJS require over a run's scope. Directory entries
// are searched for name.js and name/index.js; file entries answer to their
// stem. Names starting with ./ or ../ resolve against the requiring file.
type modules struct {
	vm      *goja.Runtime
	dirs    []string
	files   map[string]string
	builtin map[string]goja.Value
	cache   map[string]*goja.Object
}

func newModules(vm *goja.Runtime, scope *runner.Scope) *modules {
	m := &modules{
		vm:      vm,
		dirs:    scope.Dirs(),
		files:   make(map[string]string),
		builtin: make(map[string]goja.Value),
		cache:   make(map[string]*goja.Object),
	}
	for _, f := range scope.Files() {
		if filepath.Ext(f) != ".js" {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(f), ".js")
		if _, dup := m.files[stem]; !dup {
			m.files[stem] = f
		}
	}
	return m
}

// define registers a module that needs no file.
func (m *modules) define(name string, exports goja.Value) {
	m.builtin[name] = exports
}

// requireFrom returns the require function seen by code in dir.
func (m *modules) requireFrom(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		exports, err := m.load(call.Argument(0).String(), dir)
		if err != nil {
			var ex *goja.Exception
			if errors.As(err, &ex) {
				panic(ex.Value())
			}
			panic(m.vm.NewGoError(err))
		}
		return exports
	}
}

func (m *modules) load(name, dir string) (goja.Value, error) {
	if v, ok := m.builtin[name]; ok {
		return v, nil
	}

	path, err := m.resolve(name, dir)
	if err != nil {
		return nil, err
	}
	if mod, ok := m.cache[path]; ok {
		return mod.Get("exports"), nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	wrapped := "(function(exports, require, module, __filename, __dirname) {" + string(src) + "\n})"
	prog, err := goja.Compile(path, wrapped, false)
	if err != nil {
		return nil, err
	}
	fnVal, err := m.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("module %s did not compile to a function", path)
	}

	module := m.vm.NewObject()
	exports := m.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	m.cache[path] = module

	modDir := filepath.Dir(path)
	_, err = fn(goja.Undefined(),
		exports,
		m.vm.ToValue(m.requireFrom(modDir)),
		module,
		m.vm.ToValue(path),
		m.vm.ToValue(modDir),
	)
	if err != nil {
		delete(m.cache, path)
		return nil, err
	}
	return module.Get("exports"), nil
}

func (m *modules) resolve(name, dir string) (string, error) {
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		if path, ok := probe(filepath.Join(dir, name)); ok {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	if path, ok := m.files[name]; ok {
		return path, nil
	}
	for _, d := range m.dirs {
		if path, ok := probe(filepath.Join(d, name)); ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

// probe tries base, base.js and base/index.js.
func probe(base string) (string, bool) {
	for _, candidate := range []string{base, base + ".js", filepath.Join(base, "index.js")} {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}
