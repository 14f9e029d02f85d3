package js

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// HostModule is the name of the module scripts require to reach the host.
const HostModule = "liveplugin"

// installConsole defines console.log and friends. All levels write one
// space-joined line to out.
func installConsole(vm *goja.Runtime, out io.Writer) error {
	console := vm.NewObject()
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = formatValue(arg)
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, write); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// formatValue renders plain objects and arrays as JSON, everything else
// with its JavaScript string conversion.
func formatValue(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		switch obj.ClassName() {
		case "Object", "Array":
			if b, err := obj.MarshalJSON(); err == nil {
				return string(b)
			}
		}
	}
	return v.String()
}

// hostModule builds the exports of require("liveplugin"):
//
//	const lp = require("liveplugin");
//	lp.id, lp.path, lp.root, lp.classpath, lp.env
//	lp.log.info("message", {key: "value"});
func hostModule(ctx context.Context, vm *goja.Runtime, scope *runner.Scope, logger *slog.Logger) (*goja.Object, error) {
	mod := vm.NewObject()
	fields := map[string]any{
		"id":        scope.PluginID,
		"path":      scope.Script,
		"root":      scope.Root,
		"classpath": scope.Entries,
		"env":       scope.Env.Map(),
	}
	for k, v := range fields {
		if err := mod.Set(k, v); err != nil {
			return nil, err
		}
	}

	logObj := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		if err := logObj.Set(name, logFunc(ctx, logger, level)); err != nil {
			return nil, err
		}
	}
	if err := mod.Set("log", logObj); err != nil {
		return nil, err
	}
	return mod, nil
}

func logFunc(ctx context.Context, logger *slog.Logger, level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var attrs []any
		if m, ok := call.Argument(1).Export().(map[string]any); ok {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, k, m[k])
			}
		}
		logger.Log(ctx, level, call.Argument(0).String(), attrs...)
		return goja.Undefined()
	}
}
