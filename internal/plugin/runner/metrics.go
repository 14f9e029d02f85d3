package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as metric labels.
const (
	OutcomeSuccess      = "success"
	OutcomeLoadingError = "loading_error"
	OutcomeRunningError = "running_error"
)

// Metrics records plugin run statistics. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	loading     *prometheus.CounterVec
	missingDeps *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

// NewMetrics creates run metrics registered on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liveplugin",
			Name:      "runs_total",
			Help:      "Plugin runs, labeled by runner and outcome",
		}, []string{"runner", "outcome"}),
		loading: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liveplugin",
			Name:      "loading_errors_total",
			Help:      "Loading errors reported, labeled by runner and stage",
		}, []string{"runner", "stage"}),
		missingDeps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liveplugin",
			Name:      "missing_dependencies_total",
			Help:      "Dependency directives whose path did not exist",
		}, []string{"runner"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "liveplugin",
			Name:      "run_duration_seconds",
			Help:      "Duration of plugin runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"runner"}),
	}
}

func (m *Metrics) recordRun(runner string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	return func(outcome string) {
		m.runs.WithLabelValues(runner, outcome).Inc()
		m.durations.WithLabelValues(runner).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) recordLoadingError(runner string, stage Stage) {
	if m == nil {
		return
	}
	m.loading.WithLabelValues(runner, string(stage)).Inc()
}

func (m *Metrics) recordMissingDependency(runner string) {
	if m == nil {
		return
	}
	m.missingDeps.WithLabelValues(runner).Inc()
}
