// Package plugin locates script plugins on disk.
//
// A plugin is a folder whose tree contains exactly one entry script. The
// entry script name decides which runner executes it:
//
//	~/.liveplugin/plugins/
//	├── hello/
//	│   └── plugin.lua
//	└── stats/
//	    ├── plugin.js
//	    └── lib/
//	        └── table.js
//
// A folder with no entry script, or with several files of the same entry
// name anywhere in its tree, is not runnable.
//
// # Discovery
//
//	loader := plugin.NewLoader(
//	    plugin.WithPaths("/path/to/plugins"),
//	    plugin.WithScriptNames("plugin.lua", "plugin.js"),
//	)
//	plugins, err := loader.Discover()
//
// The capability check used by runners is CanRun:
//
//	if plugin.CanRun(folder, "plugin.lua") {
//	    // hand folder to the Lua runner
//	}
//
// Execution lives in the runner package and its language loaders.
package plugin
