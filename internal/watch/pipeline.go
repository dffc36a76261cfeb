package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Pipeline implements process-one-change: fetch the authoritative
// document, format it, and upsert or delete it in the index. It waits
// out the backoff delay before a retried attempt (job.Retry > 0), but
// knows nothing about retry counting, checkpointing, or the parked set — that
// bookkeeping belongs to the wrapper in engine.go, which is the only
// caller.
type Pipeline struct {
	fetcher   RegistryFetcher
	formatter Formatter
	index     IndexClient
	telemetry Telemetry
	backoff   atomic.Pointer[BackoffConfig]
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	fetcher RegistryFetcher, formatter Formatter, index IndexClient, telemetry Telemetry,
	backoff BackoffConfig, logger *slog.Logger,
) *Pipeline {
	p := &Pipeline{fetcher: fetcher, formatter: formatter, index: index, telemetry: telemetry, logger: logger}
	p.backoff.Store(&backoff)

	return p
}

// UpdateBackoff swaps in a new backoff curve, taking effect on the next
// job that retries. In-flight sleeps already reading the old curve are
// unaffected — they run to completion against whichever pointer they
// loaded.
func (p *Pipeline) UpdateBackoff(cfg BackoffConfig) {
	p.backoff.Store(&cfg)
}

// Process runs the process-one-change algorithm for a single job.
// A nil return means success — a heartbeat leak, a no-op change, a
// formatter skip, and a successful upsert are all "success". A non-nil
// return is always one of the sentinel kinds in errors.go; the wrapper
// classifies it.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	p.telemetry.IncPackages()

	change := job.Change

	if change.IsHeartbeat() {
		p.logger.Error("heartbeat leaked into pipeline", slog.Int64("seq", change.Seq))
		return nil
	}

	if job.Retry > 0 {
		if err := p.backoff.Load().sleep(ctx, job.Retry); err != nil {
			return newFetchError(err.Error())
		}
	}

	if change.Deleted {
		return newDeletedError("change feed reported deletion")
	}

	if len(change.Changes) == 0 {
		p.logger.Debug("change carries no revisions, nothing to do",
			slog.String("id", change.ID),
			slog.Int64("seq", change.Seq),
		)

		return nil
	}

	rev := change.Changes[0].Rev

	doc, err := p.fetcher.GetDoc(ctx, change.ID, rev)
	if err != nil {
		if errors.Is(err, ErrLookupFailure) {
			return newDeletedError(err.Error())
		}

		return newFetchError(err.Error())
	}

	if doc.Deleted {
		return newDeletedError("document lookup reports the document is gone")
	}

	record, err := p.formatter.Format(doc)
	if err != nil {
		return newFormatError(err.Error())
	}

	if record == nil {
		p.logger.Debug("formatter skipped document",
			slog.String("id", change.ID),
			slog.String("rev", rev),
		)

		return nil
	}

	if err := p.index.Upsert(ctx, *record); err != nil {
		return newUpsertError(err.Error())
	}

	return nil
}

// ErrLookupFailure is the sentinel a RegistryFetcher implementation
// returns (wrapped) when GetDoc's response has a populated error field
// and an absent id: "LookupFailure is detected by a populated
// `error` field and absent `id`." Defined in this package (rather than
// in internal/registry) so Pipeline can classify it without registry
// importing watch's error-classification internals; internal/registry
// imports this sentinel and wraps it.
var ErrLookupFailure = errors.New("watch: document lookup failure")
