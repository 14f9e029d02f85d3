// Package report provides runner.ErrorReporter implementations: an
// in-memory Collector, a slog-backed LogReporter and a fan-out Tee.
package report

import (
	"time"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// Kind classifies a report entry.
type Kind string

// Entry kinds.
const (
	KindLoading Kind = "loading"
	KindRunning Kind = "running"
)

// Entry is one reported failure.
type Entry struct {
	ID       string
	Kind     Kind
	PluginID string
	Message  string
	Cause    error
	Stack    string
	Time     time.Time
}

// Tee fans every report out to each reporter.
func Tee(reporters ...runner.ErrorReporter) runner.ErrorReporter {
	return tee(reporters)
}

type tee []runner.ErrorReporter

func (t tee) AddLoadingError(pluginID, message string) {
	for _, r := range t {
		r.AddLoadingError(pluginID, message)
	}
}

func (t tee) AddRunningError(pluginID string, cause error) {
	for _, r := range t {
		r.AddRunningError(pluginID, cause)
	}
}
