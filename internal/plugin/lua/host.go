package lua

import (
	"context"
	"log/slog"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// HostModule is the name of the module scripts require to reach the host.
const HostModule = "liveplugin"

// hostModule builds the liveplugin module for one run:
//
//	local lp = require("liveplugin")
//	lp.id, lp.path, lp.root, lp.classpath, lp.env, lp.capabilities
//	lp.log.info("message", {key = "value"})
func hostModule(scope *runner.Scope, caps []Capability, logger *slog.Logger) lua.LGFunction {
	return func(L *lua.LState) int {
		bridge := NewBridge(L)
		mod := L.NewTable()

		L.SetField(mod, "id", lua.LString(scope.PluginID))
		L.SetField(mod, "path", lua.LString(scope.Script))
		L.SetField(mod, "root", lua.LString(scope.Root))
		L.SetField(mod, "classpath", bridge.ToLuaValue(scope.Entries))
		L.SetField(mod, "env", bridge.ToLuaValue(scope.Env.Map()))

		granted := L.NewTable()
		for _, c := range caps {
			granted.Append(lua.LString(c))
		}
		L.SetField(mod, "capabilities", granted)

		logMod := L.NewTable()
		for name, level := range map[string]slog.Level{
			"debug": slog.LevelDebug,
			"info":  slog.LevelInfo,
			"warn":  slog.LevelWarn,
			"error": slog.LevelError,
		} {
			L.SetField(logMod, name, L.NewFunction(logFunc(bridge, logger, level)))
		}
		L.SetField(mod, "log", logMod)

		L.Push(mod)
		return 1
	}
}

// logFunc returns log.<level>(msg [, fields]).
func logFunc(bridge *Bridge, logger *slog.Logger, level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		var attrs []any
		if fields, ok := L.Get(2).(*lua.LTable); ok {
			if m, ok := bridge.ToGoValue(fields).(map[string]any); ok {
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					attrs = append(attrs, k, m[k])
				}
			}
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		logger.Log(ctx, level, msg, attrs...)
		return 0
	}
}
