package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/liveplugin/internal/app"
)

func newRunCommand(g *globalFlags) *cobra.Command {
	var (
		rf runFlags
		id string
	)

	cmd := &cobra.Command{
		Use:   "run <folder>...",
		Short: "Run the plugins in the given folders",
		Long: `Run each plugin folder with the first runner whose entry script it holds.

Example:
  liveplugin run ./plugins/hello
  liveplugin run --env LIBS=$HOME/lua --bind user='"ada"' ./plugins/greet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && len(args) > 1 {
				return errors.New("--id needs exactly one folder")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := rf.apply(cfg); err != nil {
				return err
			}
			bindings, err := rf.bindings()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}

			for _, folder := range args {
				if _, err := a.RunPlugin(cmd.Context(), folder, id, bindings); err != nil {
					return err
				}
			}
			return rf.finish(cmd.ErrOrStderr(), a)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Plugin ID reported with errors (default: folder name)")
	rf.register(cmd.Flags())
	return cmd
}

func newCheckCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <folder>",
		Short: "Print the runner able to run a plugin folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			rn, err := a.Runners().RunnerFor(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", rn.Name(), rn.ScriptName())
			return nil
		},
	}
}

func newListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plugins found in the configured plugin paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			infos, err := a.Discover()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCRIPT\tSTATUS")
			for _, info := range infos {
				status, script := "ok", info.Script
				if info.Error != nil {
					status, script = info.Error.Error(), "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.ID, script, status)
			}
			return tw.Flush()
		},
	}
}

func newRunAllCommand(g *globalFlags) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run every plugin found in the configured plugin paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := rf.apply(cfg); err != nil {
				return err
			}
			bindings, err := rf.bindings()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}

			results, err := a.RunAll(cmd.Context(), bindings)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if !r.OK() {
					failed++
				}
			}
			a.Logger().Info("run-all finished", "plugins", len(results), "failed", failed)
			return rf.finish(cmd.ErrOrStderr(), a)
		},
	}

	rf.register(cmd.Flags())
	return cmd
}

func newWatchCommand(g *globalFlags) *cobra.Command {
	var (
		rf    runFlags
		id    string
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <folder>",
		Short: "Run a plugin and rerun it whenever a file under its folder changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := rf.apply(cfg); err != nil {
				return err
			}
			bindings, err := rf.bindings()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}

			err = a.Watch(cmd.Context(), args[0], app.WatchOptions{
				PluginID: id,
				Bindings: bindings,
				Delay:    delay,
				OnRun: func(r app.Result) {
					for _, e := range r.Entries {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", e.Kind, e.PluginID, e.Message)
					}
				},
			})
			if errors.Is(err, cmd.Context().Err()) && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Plugin ID reported with errors (default: folder name)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Quiet period before a rerun (default 200ms)")
	rf.register(cmd.Flags())
	return cmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "liveplugin %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
