package watch

import (
	"context"
	"log/slog"
)

// LogErrorSink is the default ErrorSink: every recoverable error
// becomes one structured log line. There is no alerting or aggregation
// here — a richer sink (paging, a dead-letter topic) can be wired in
// later behind the same interface without touching the pipeline.
type LogErrorSink struct {
	logger *slog.Logger
}

// NewLogErrorSink creates a LogErrorSink.
func NewLogErrorSink(logger *slog.Logger) *LogErrorSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogErrorSink{logger: logger}
}

func (s *LogErrorSink) ReportError(_ context.Context, err error, fields map[string]any) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, slog.String("error", err.Error()))

	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}

	s.logger.Error("recoverable error", args...)
}
