package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quinton-ashley/npm-search/internal/pkgid"
)

// Engine owns the parked set and last-seen-in-feed map and
// implements the ordered worker's per-job consumer closure. It is
// constructed once by the Lifecycle controller and never exposed outside
// this package — everything else (reader driver, reaper, refresh
// scanner) calls through Engine's methods rather than touching these
// maps directly. Those methods run on several goroutines (the Queue's
// handler, the reader driver, the reaper, the refresh scanner and the
// status readers), so every map access takes mu.
type Engine struct {
	queue        *Queue
	checkpointer *Checkpointer
	pipeline     *Pipeline
	lostIndex    LostIndexClient
	index        IndexClient
	errorSink    ErrorSink
	telemetry    Telemetry
	logger       *slog.Logger

	retryMax atomic.Int64

	mu       sync.Mutex // guards parked and lastSeen; see note below
	parked   map[string]Job
	lastSeen map[string]time.Time
}

// NewEngine creates an Engine. The Queue is created separately by the
// caller (internal/watch/lifecycle.go) because Queue's constructor needs
// a reference to Engine.handle, which needs a reference back to the
// Queue to unshift retries — wiring happens in NewController.
func NewEngine(
	checkpointer *Checkpointer, pipeline *Pipeline, lostIndex LostIndexClient, index IndexClient,
	errorSink ErrorSink, telemetry Telemetry, retryMax int, logger *slog.Logger,
) *Engine {
	e := &Engine{
		checkpointer: checkpointer,
		pipeline:     pipeline,
		lostIndex:    lostIndex,
		index:        index,
		errorSink:    errorSink,
		telemetry:    telemetry,
		logger:       logger,
		parked:       make(map[string]Job),
		lastSeen:     make(map[string]time.Time),
	}

	e.retryMax.Store(int64(retryMax))

	return e
}

// UpdateRetryMax changes the retry ceiling applied to future job
// failures. Safe to call while the engine is running — in-flight jobs
// finish against whichever value onFailure observes at that instant.
func (e *Engine) UpdateRetryMax(n int) {
	e.retryMax.Store(int64(n))
}

// UpdateBackoff forwards a new retry backoff curve to the pipeline.
func (e *Engine) UpdateBackoff(cfg BackoffConfig) {
	e.pipeline.UpdateBackoff(cfg)
}

// attachQueue finishes wiring after the Queue has been constructed.
func (e *Engine) attachQueue(q *Queue) {
	e.queue = q
}

// recordLastSeen notes that the live feed just produced a change for id.
// Called by the reader driver for every non-heartbeat event,
// including ones that will later be superseded or fail — the refresh
// scanner only needs to know a fresher update is in flight, not
// whether it ultimately succeeded.
func (e *Engine) recordLastSeen(id pkgid.ID, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeen[id.Key()] = at
}

// lastSeenAt returns the last time the live feed produced a change for
// id, and whether any record exists at all.
func (e *Engine) lastSeenAt(id pkgid.ID) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.lastSeen[id.Key()]

	return t, ok
}

// parkedCount returns the number of jobs currently parked.
func (e *Engine) parkedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.parked)
}

// drainParked atomically snapshots and clears the parked set.
func (e *Engine) drainParked() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	jobs := make([]Job, 0, len(e.parked))
	for _, j := range e.parked {
		jobs = append(jobs, j)
	}

	e.parked = make(map[string]Job)

	return jobs
}

// handle is the per-job consumer closure passed to Queue as its
// Handler. The Queue runs at most one handle call at a time. The map
// accesses below still take mu, because recordLastSeen, lastSeenAt,
// parkedCount and drainParked are called from the reader driver's,
// refresh scanner's, reaper's and status goroutines.
func (e *Engine) handle(ctx context.Context, job Job) {
	start := time.Now()
	id := job.id()
	attemptID := uuid.New().String()

	logger := e.logger.With(
		slog.String("id", job.Change.ID),
		slog.Int64("seq", job.Change.Seq),
		slog.Int("retry", job.Retry),
		slog.String("attempt_id", attemptID),
	)

	// Step 1: a fresh dequeue of this id supersedes any stale parked
	// state for it.
	e.unpark(id)

	// Step 2: retries must not regress a checkpoint an earlier attempt
	// already advanced.
	ignoreSeq := job.IgnoreSeq || job.Retry > 0

	// Step 6: always, in a guaranteed-release scope, record handler
	// duration — regardless of which branch below the job takes. No
	// separate progress telemetry is emitted here: Pipeline.Process
	// counts packages for every job, ignore-seq jobs included.
	defer func() {
		e.telemetry.ObserveHandlerDuration(time.Since(start).Seconds())
	}()

	err := e.pipeline.Process(ctx, job)

	switch {
	case err == nil:
		e.onSuccess(ctx, job, ignoreSeq, logger)
	case errors.Is(err, ErrDeleted):
		e.onDeleted(ctx, job, ignoreSeq, logger, err)
	default:
		e.onFailure(ctx, job, logger, err)
	}
}

// onSuccess advances the checkpoint unless the job is ignore-seq.
func (e *Engine) onSuccess(ctx context.Context, job Job, ignoreSeq bool, logger *slog.Logger) {
	if ignoreSeq || job.Change.IsSynthetic() {
		return
	}

	if err := e.checkpointer.Save(ctx, StatePartial{Seq: job.Change.Seq, SeqSet: true}); err != nil {
		e.errorSink.ReportError(ctx, err, map[string]any{"id": job.Change.ID, "phase": "checkpoint"})
		logger.Error("checkpoint save failed", slog.String("error", err.Error()))
	}
}

// onDeleted unconditionally deletes from the index and returns success,
// advancing seq iff the job is not ignore-seq. A failed delete is
// logged but not retried — it will be retried implicitly the next time
// the refresh scanner revisits a now-stale facet bucket for this id.
func (e *Engine) onDeleted(ctx context.Context, job Job, ignoreSeq bool, logger *slog.Logger, cause error) {
	if err := e.index.Delete(ctx, job.Change.ID); err != nil {
		e.errorSink.ReportError(ctx, err, map[string]any{"id": job.Change.ID, "phase": "delete"})
		logger.Error("index delete failed, not retrying", slog.String("error", err.Error()), slog.String("cause", cause.Error()))
	} else {
		logger.Info("document deleted from index", slog.String("cause", cause.Error()))
	}

	e.onSuccess(ctx, job, ignoreSeq, logger)
}

// onFailure increments retry, reports the error, and either unshifts
// for another attempt or parks the job once retryMax is exceeded.
func (e *Engine) onFailure(ctx context.Context, job Job, logger *slog.Logger, cause error) {
	e.errorSink.ReportError(ctx, cause, map[string]any{"id": job.Change.ID, "retry": job.Retry})

	next := job.withRetryIncrement()

	if !next.exceeded(int(e.retryMax.Load())) {
		logger.Warn("job failed, retrying", slog.String("error", cause.Error()))

		if err := e.queue.Unshift(ctx, next); err != nil {
			logger.Error("could not requeue retry, dropping", slog.String("error", err.Error()))
		}

		return
	}

	logger.Error("retries exhausted, parking job", slog.String("error", cause.Error()))
	e.park(next)

	if err := e.lostIndex.Upsert(ctx, next, cause.Error()); err != nil {
		logger.Warn("best-effort lost-index write failed", slog.String("error", err.Error()))
	}
}

// unpark removes any parked entry for id.
func (e *Engine) unpark(id pkgid.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.parked, id.Key())
}

// park inserts job into the parked set, keyed by its normalized id.
func (e *Engine) park(job Job) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.parked[job.id().Key()] = job
}
