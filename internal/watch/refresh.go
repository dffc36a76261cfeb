package watch

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// staleBucketLimit is the number of records fetched per scan pass.
const staleBucketLimit = 20

// RefreshScanner periodically discovers stale records in the index by
// faceted minimum and re-enqueues them with ignoreSeq=true. It is
// optional — the Lifecycle controller only starts it when configured to.
type RefreshScanner struct {
	engine *Engine
	queue  *Queue
	index  IndexClient
	period atomic.Int64 // nanoseconds
	logger *slog.Logger
}

// NewRefreshScanner creates a RefreshScanner with the given refreshPeriod.
func NewRefreshScanner(engine *Engine, queue *Queue, index IndexClient, period time.Duration, logger *slog.Logger) *RefreshScanner {
	s := &RefreshScanner{engine: engine, queue: queue, index: index, logger: logger}
	s.period.Store(int64(period))

	return s
}

// UpdatePeriod changes the scanner's tick interval. Takes effect on the
// timer's next reset. Whether the scanner runs at all is decided once,
// at construction, by cfg.RefreshEnabled — flipping that flag requires
// a restart, since it changes whether this goroutine exists at all.
func (s *RefreshScanner) UpdatePeriod(period time.Duration) {
	s.period.Store(int64(period))
}

// Run blocks, ticking every s.period until ctx is canceled.
func (s *RefreshScanner) Run(ctx context.Context) {
	timer := time.NewTimer(time.Duration(s.period.Load()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(time.Duration(s.period.Load()))
		}
	}
}

// tick fetches one bucket of stale records and reinjects each one still
// stale. Failures are logged and swallowed — the scanner is best-effort
// and the timer always continues.
func (s *RefreshScanner) tick(ctx context.Context) {
	const expiresAtFacet = "_searchInternal.expiresAt"

	buckets, err := s.index.FacetValues(ctx, expiresAtFacet)
	if err != nil {
		s.logger.Warn("refresh scanner facet query failed", slog.String("error", err.Error()))
		return
	}

	if len(buckets) == 0 {
		return
	}

	oldest := buckets[0].Value

	epoch, err := strconv.ParseInt(oldest, 10, 64)
	if err != nil {
		s.logger.Warn("refresh scanner could not parse facet bucket",
			slog.String("bucket", oldest), slog.String("error", err.Error()))

		return
	}

	if time.Unix(epoch, 0).After(time.Now()) {
		return // oldest expiry bucket is still in the future
	}

	records, err := s.index.StaleInBucket(ctx, oldest, staleBucketLimit)
	if err != nil {
		s.logger.Warn("refresh scanner bucket fetch failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("refresh scanner found stale records", slog.Int("count", len(records)), slog.String("bucket", oldest))

	for _, rec := range records {
		s.reinjectIfStale(ctx, rec)
	}
}

// reinjectIfStale skips records the live feed has already produced a
// fresher update for, and reinjects everything else.
func (s *RefreshScanner) reinjectIfStale(ctx context.Context, rec StaleRecord) {
	if rec.Rev == "" {
		return
	}

	change := Change{ID: rec.ID, Seq: refreshSyntheticSeq, Deleted: false, Changes: []ChangeRev{{Rev: rec.Rev}}}

	if seen, ok := s.engine.lastSeenAt(change.PackageID()); ok && seen.After(time.Unix(rec.Modified, 0)) {
		s.logger.Debug("refresh scanner skipping record with fresher live update", slog.String("id", rec.ID))
		return
	}

	job := Job{Change: change, Retry: 0, IgnoreSeq: true}

	if err := s.queue.Unshift(ctx, job); err != nil {
		s.logger.Warn("refresh scanner could not enqueue record", slog.String("id", rec.ID), slog.String("error", err.Error()))
	}
}
