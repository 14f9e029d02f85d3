package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dshills/liveplugin/internal/plugin/runner"
	"github.com/dshills/liveplugin/internal/plugin/watcher"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	// PluginID names the plugin; empty uses the folder name.
	PluginID string

	// Bindings are passed to every run.
	Bindings runner.Bindings

	// Delay is the quiet period before a rerun; zero uses
	// watcher.DefaultDelay.
	Delay time.Duration

	// OnRun is called after every run.
	OnRun func(Result)
}

// Watch runs the plugin in folder once and again after each change under
// folder, until ctx is done. It returns ctx.Err() on cancellation. The
// collector keeps only the reports of the latest run.
func (a *App) Watch(ctx context.Context, folder string, opts WatchOptions) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return NewOperationError("watch", folder, err)
	}

	w, err := watcher.New(watcher.WithDelay(opts.Delay), watcher.WithLogger(a.logger))
	if err != nil {
		return NewOperationError("watch", abs, err)
	}
	defer w.Close()
	if err := w.Add(abs); err != nil {
		return NewOperationError("watch", abs, err)
	}
	if opts.PluginID == "" {
		opts.PluginID = filepath.Base(abs)
	}

	run := func() error {
		res, err := a.RunPlugin(ctx, abs, opts.PluginID, opts.Bindings)
		if err != nil {
			return err
		}
		if opts.OnRun != nil {
			opts.OnRun(res)
		}
		return nil
	}

	if err := run(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			a.logger.Info("plugin changed", "folder", change.Folder, "files", len(change.Paths))
			a.collector.Forget(opts.PluginID)
			if err := run(); err != nil {
				// The entry script may be mid-rename; wait for the next change.
				a.logger.Warn("rerun skipped", "folder", abs, "error", err)
			}

		case err, ok := <-w.Errors():
			if ok {
				a.logger.Warn("watch error", "folder", abs, "error", err)
			}
		}
	}
}
