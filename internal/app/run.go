package app

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/liveplugin/internal/plugin"
	"github.com/dshills/liveplugin/internal/plugin/runner"
	"github.com/dshills/liveplugin/internal/report"
)

// Result summarizes one plugin run.
type Result struct {
	PluginID string
	Folder   string
	Runner   string
	Duration time.Duration
	// Entries are the reports filed for this plugin during the run.
	Entries []report.Entry
}

// Outcome classifies the run the way run metrics do.
func (r Result) Outcome() string {
	outcome := runner.OutcomeSuccess
	for _, e := range r.Entries {
		switch e.Kind {
		case report.KindRunning:
			return runner.OutcomeRunningError
		case report.KindLoading:
			outcome = runner.OutcomeLoadingError
		}
	}
	return outcome
}

// OK reports whether the run produced no reports.
func (r Result) OK() bool {
	return len(r.Entries) == 0
}

// RunPlugin runs the plugin in folder with the first runner able to run it.
// An empty pluginID defaults to the folder name. Script failures end up in
// the Result; the error is only for folders no runner accepts.
func (a *App) RunPlugin(ctx context.Context, folder, pluginID string, bindings runner.Bindings) (Result, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return Result{}, NewOperationError("run", folder, err)
	}
	if pluginID == "" {
		pluginID = filepath.Base(abs)
	}

	rn, err := a.runners.RunnerFor(abs)
	if err != nil {
		return Result{}, NewOperationError("run", abs, err)
	}

	if a.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()
	}

	a.logger.Info("running plugin", "plugin", pluginID, "runner", rn.Name(), "folder", abs)
	start := time.Now()
	rn.RunPlugin(ctx, abs, pluginID, bindings)

	res := Result{
		PluginID: pluginID,
		Folder:   abs,
		Runner:   rn.Name(),
		Duration: time.Since(start),
	}
	for _, e := range a.collector.ForPlugin(pluginID) {
		if !e.Time.Before(start) {
			res.Entries = append(res.Entries, e)
		}
	}
	a.logger.Info("plugin finished",
		"plugin", pluginID,
		"outcome", res.Outcome(),
		"duration", res.Duration,
	)
	return res, nil
}

// Discover lists the plugin folders under the configured search paths.
// Folders without a usable entry script are returned with Error set.
func (a *App) Discover() ([]*plugin.PluginInfo, error) {
	infos, err := a.discovery.Discover()
	if err != nil {
		return nil, NewOperationError("discover", "", err)
	}
	return infos, nil
}

// Find locates a plugin by ID in the search paths.
func (a *App) Find(id string) (*plugin.PluginInfo, error) {
	info, err := a.discovery.FindPlugin(id)
	if err != nil {
		return nil, NewOperationError("find", id, err)
	}
	return info, nil
}

// RunAll discovers every runnable plugin and runs them, at most
// Config.Concurrency at a time. Results are ordered by plugin ID.
func (a *App) RunAll(ctx context.Context, bindings runner.Bindings) ([]Result, error) {
	if _, err := a.Discover(); err != nil {
		return nil, err
	}
	for _, broken := range a.discovery.Errors() {
		a.logger.Warn("skipping plugin", "plugin", broken.ID, "error", broken.Error)
	}
	runnable := a.discovery.Runnable()

	results := make([]Result, len(runnable))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, info := range runnable {
		i, info := i, info
		g.Go(func() error {
			res, err := a.RunPlugin(gctx, info.Folder, info.ID, bindings.Clone())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
