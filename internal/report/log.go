package report

import "log/slog"

// LogReporter writes every report to a logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// AddLoadingError implements runner.ErrorReporter.
func (r *LogReporter) AddLoadingError(pluginID, message string) {
	r.logger.Error("plugin loading error",
		"plugin", pluginID,
		"kind", KindLoading,
		"message", message,
	)
}

// AddRunningError implements runner.ErrorReporter.
func (r *LogReporter) AddRunningError(pluginID string, cause error) {
	d := Describe(cause)
	attrs := []any{
		"plugin", pluginID,
		"kind", KindRunning,
		"type", d.Type,
		"message", d.Message,
	}
	if d.Stack != "" {
		attrs = append(attrs, "stack", d.Stack)
	}
	r.logger.Error("plugin running error", attrs...)
}
