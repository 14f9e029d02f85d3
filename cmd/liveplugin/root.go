package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/liveplugin/internal/app"
	"github.com/dshills/liveplugin/internal/config"
)

// errReported ends a command whose plugins reported errors. The report has
// already been printed.
var errReported = errors.New("plugins reported errors")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the liveplugin command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "liveplugin",
		Short: "Run Lua and JavaScript plugins from plugin folders",
		Long: `liveplugin runs script plugins. A plugin is a folder holding exactly one
entry script (plugin.lua or plugin.js). Dependency directives in the entry
script add directories and files to the plugin's module search scope:

  -- add-to-classpath $LIBS/json       (Lua)
  // add-to-classpath $LIBS/lodash.js  (JavaScript)

Loading errors (missing dependencies, compile errors) and running errors
(errors raised by the script) are reported separately.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", os.Getenv("LIVEPLUGIN_CONFIG"), "Path to a TOML or YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		newRunCommand(g),
		newCheckCommand(g),
		newListCommand(g),
		newRunAllCommand(g),
		newWatchCommand(g),
		newVersionCommand(version, commit, date),
	)

	return rootCmd
}

// loadConfig reads the configuration and applies global flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	return cfg, nil
}

// newApp assembles an App writing script output to the command's stdout
// and logs to its stderr.
func newApp(cmd *cobra.Command, cfg *config.Config) (*app.App, error) {
	return app.New(app.Options{
		Config:    cfg,
		Output:    cmd.OutOrStdout(),
		LogOutput: cmd.ErrOrStderr(),
	})
}
