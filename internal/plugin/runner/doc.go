// Package runner executes script plugins and classifies their failures.
//
// An Engine pairs a language CodeLoader with an ErrorReporter. Running a
// plugin goes through these steps:
//
//  1. Find the single entry script in the plugin folder.
//  2. Scan the script for dependency directives. For Lua:
//
//     -- add-to-classpath $LIBS/json
//
//     $NAME placeholders are replaced from the engine's Environment, which
//     also holds THIS_SCRIPT during a run. Missing paths are reported as
//     loading errors and skipped.
//  3. Build the Scope: the plugin folder followed by the resolved paths.
//  4. Copy the caller's Bindings and add THIS_SCRIPT.
//  5. Let the CodeLoader create an interpreter over the Scope and run the
//     script.
//
// Failures never escape RunPlugin. A *LoadingFailure (missing dependency,
// unreadable script, engine or compile error) goes to AddLoadingError; a
// *RunningFailure (error raised by the script body) goes to AddRunningError
// with the original error still reachable through errors.Is/As.
//
//	engine := runner.NewEngine(lua.NewLoader(), reporter,
//	    runner.WithEnvironment(map[string]string{"LIBS": "/opt/libs"}),
//	    runner.WithLogger(logger),
//	)
//	engine.RunPlugin(ctx, "/plugins/hello", "hello", runner.Bindings{"editor": ed})
package runner
