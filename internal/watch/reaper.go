package watch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Reaper periodically re-enqueues jobs that exceeded their in-queue
// retries. It self-schedules on a timer and never overlaps with
// itself — the next tick is armed only after the current pass finishes.
type Reaper struct {
	engine *Engine
	queue  *Queue
	period atomic.Int64 // nanoseconds
	logger *slog.Logger
}

// NewReaper creates a Reaper with the given retrySkipped period.
func NewReaper(engine *Engine, queue *Queue, period time.Duration, logger *slog.Logger) *Reaper {
	r := &Reaper{engine: engine, queue: queue, logger: logger}
	r.period.Store(int64(period))

	return r
}

// UpdatePeriod changes the reaper's tick interval. Takes effect on the
// timer's next reset, so at most one tick runs at the old interval.
func (r *Reaper) UpdatePeriod(period time.Duration) {
	r.period.Store(int64(period))
}

// Run blocks, ticking every r.period until ctx is canceled. Intended to
// be run in its own goroutine by the Lifecycle controller.
func (r *Reaper) Run(ctx context.Context) {
	timer := time.NewTimer(time.Duration(r.period.Load()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.tick(ctx)
			timer.Reset(time.Duration(r.period.Load()))
		}
	}
}

// tick snapshots and clears the parked set, then reinjects each job at
// the front of the queue with retry=0 and ignoreSeq=true: a parked
// job's seq is, by construction, older than the current checkpoint.
func (r *Reaper) tick(ctx context.Context) {
	jobs := r.engine.drainParked()
	if len(jobs) == 0 {
		return
	}

	r.logger.Info("reaper reinjecting parked jobs", slog.Int("count", len(jobs)))

	for _, job := range jobs {
		reinject := job.asIgnoreSeqRetry()

		if err := r.queue.Unshift(ctx, reinject); err != nil {
			r.logger.Error("reaper could not reinject job",
				slog.String("id", job.Change.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
