package watch

import (
	"log/slog"
	"sync/atomic"
)

// NopTelemetry discards everything. Useful as a default and in tests
// that don't care about counters.
type NopTelemetry struct{}

func (NopTelemetry) IncPackages()                  {}
func (NopTelemetry) SetTotalSequence(int64)         {}
func (NopTelemetry) ObserveHandlerDuration(float64) {}
func (NopTelemetry) SetQueueLength(int)             {}
func (NopTelemetry) SetParkedCount(int)             {}

// LogTelemetry is a minimal in-process Telemetry sink: atomic counters
// exposed for the status API (internal/statusapi) plus a debug log line
// per observation. It is the default adapter wired when no richer sink
// (e.g. a metrics exporter) is configured.
type LogTelemetry struct {
	logger *slog.Logger

	packages      atomic.Int64
	totalSequence atomic.Int64
	queueLength   atomic.Int64
	parkedCount   atomic.Int64
}

// NewLogTelemetry creates a LogTelemetry sink.
func NewLogTelemetry(logger *slog.Logger) *LogTelemetry {
	return &LogTelemetry{logger: logger}
}

func (t *LogTelemetry) IncPackages() {
	t.packages.Add(1)
}

func (t *LogTelemetry) SetTotalSequence(seq int64) {
	t.totalSequence.Store(seq)
	t.logger.Debug("total sequence refreshed", slog.Int64("seq", seq))
}

func (t *LogTelemetry) ObserveHandlerDuration(d float64) {
	t.logger.Debug("handler duration", slog.Float64("seconds", d))
}

func (t *LogTelemetry) SetQueueLength(n int) {
	t.queueLength.Store(int64(n))
}

func (t *LogTelemetry) SetParkedCount(n int) {
	t.parkedCount.Store(int64(n))
}

// Snapshot returns the current counter values for the status API.
func (t *LogTelemetry) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		Packages:      t.packages.Load(),
		TotalSequence: t.totalSequence.Load(),
		QueueLength:   int(t.queueLength.Load()),
		ParkedCount:   int(t.parkedCount.Load()),
	}
}

// TelemetrySnapshot is a point-in-time read of LogTelemetry's counters.
type TelemetrySnapshot struct {
	Packages      int64
	TotalSequence int64
	QueueLength   int
	ParkedCount   int
}
