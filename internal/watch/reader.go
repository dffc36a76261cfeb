package watch

import (
	"context"
	"log/slog"
	"time"
)

// ReaderDriver starts, pauses, and resumes the upstream change
// subscription, translating feed events into jobs pushed onto the
// ordered worker and enforcing the prefetch watermark.
type ReaderDriver struct {
	reader RegistryReader
	engine *Engine
	queue  *Queue
	errSink ErrorSink
	logger *slog.Logger

	maxPrefetch int
	minUnpause  int
}

// NewReaderDriver creates a ReaderDriver without a Queue attached.
// maxPrefetch and minUnpause are the watchMaxPrefetch/watchMinUnpause
// config knobs; the caller is responsible for validating
// minUnpause < maxPrefetch. Call attachQueue before Start — the
// Lifecycle controller wires this up because the Queue's constructor in
// turn needs a reference to this driver's onSaturatedTransition method.
func NewReaderDriver(reader RegistryReader, engine *Engine, errSink ErrorSink, maxPrefetch, minUnpause int, logger *slog.Logger) *ReaderDriver {
	return &ReaderDriver{
		reader:      reader,
		engine:      engine,
		errSink:     errSink,
		maxPrefetch: maxPrefetch,
		minUnpause:  minUnpause,
		logger:      logger,
	}
}

// attachQueue finishes wiring after the Queue has been constructed.
func (rd *ReaderDriver) attachQueue(q *Queue) {
	rd.queue = q
}

// Start begins the subscription from since (the checkpoint's current
// seq). Feed errors are reported but never tear the driver down — the
// underlying reader owns transport-level reconnection.
func (rd *ReaderDriver) Start(ctx context.Context, since int64) error {
	return rd.reader.Start(ctx, since, func(c Change) {
		rd.onChange(ctx, c)
	}, func(err error) {
		rd.errSink.ReportError(ctx, err, map[string]any{"component": "reader"})
		rd.logger.Error("change feed error", slog.String("error", err.Error()))
	})
}

// onChange is the per-event callback passed to the underlying
// RegistryReader.
func (rd *ReaderDriver) onChange(ctx context.Context, c Change) {
	if !c.IsHeartbeat() {
		rd.engine.recordLastSeen(c.PackageID(), time.Now())
	}

	job := Job{Change: c, Retry: 0, IgnoreSeq: false}

	if err := rd.queue.Push(ctx, job); err != nil {
		// Heartbeats are rejected by Push — that is expected and not
		// an error; anything else (context canceled) is logged.
		if !c.IsHeartbeat() {
			rd.logger.Debug("reader push did not enqueue job", slog.String("error", err.Error()))
		}

		return
	}

	if rd.queue.Length() > rd.maxPrefetch {
		rd.reader.Pause()
	}
}

// onSaturatedTransition is the Queue's saturated hook: fired
// when the queue length crosses back below the low-water mark after
// having exceeded the high-water mark. Only the downward transition
// resumes the feed; the upward one is informational only (pause
// already happened synchronously in onChange).
func (rd *ReaderDriver) onSaturatedTransition(aboveThreshold bool) {
	if aboveThreshold {
		return
	}

	// The Queue fires this from inside its own loop, and only once its
	// length is already below the low-water mark (minUnpause, as wired by
	// NewController); asking rd.queue.Length() here would block on that
	// same loop.
	rd.reader.Resume()
}

// Stop stops the upstream reader (idempotent, per the underlying
// RegistryReader contract).
func (rd *ReaderDriver) Stop() {
	rd.reader.Stop()
}
