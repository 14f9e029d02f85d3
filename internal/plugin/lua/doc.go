// Package lua runs plugin.lua plugins on gopher-lua.
//
// # Loader
//
// Loader implements runner.CodeLoader. Each run gets its own State whose
// require search path is limited to the scope: the plugin folder and every
// directory named by a directive. A directive naming a single .lua file makes
// that file loadable by its stem.
//
//	-- add-to-classpath $LIBS/json.lua
//	local json = require("json")
//	print(THIS_SCRIPT)
//
// Bindings become globals and are also collected in the binding table.
// Syntax errors are reported as loading errors; errors raised while the
// chunk runs, including host function errors, become a runner.RunningFailure
// whose cause is a *ScriptError carrying the Lua traceback.
//
// # Host module
//
// require("liveplugin") returns the plugin id, entry script path, root,
// classpath, environment table and log functions routed to slog:
//
//	local lp = require("liveplugin")
//	lp.log.info("loaded", {path = lp.path})
//
// # Sandbox
//
// dofile, loadfile, load and loadstring are removed; io, os and debug are
// only available with a capability:
//   - CapabilityFileRead: io.open in read modes, io.lines
//   - CapabilityFileWrite: io.open in write modes
//   - CapabilityShell: os.getenv, os.time, os.clock
//   - CapabilityProcess: os.execute, stopped when the run is cancelled
//   - CapabilityUnsafe: the full io, os and debug libraries
//
// # Bridge
//
// Bridge converts host values. Maps, slices and structs become tables,
// GoFunc values become callable functions and anything else is passed as
// userdata.
package lua
