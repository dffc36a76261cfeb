package watch

import "context"

// State is the persisted pipeline state: the single durable fact the
// watcher keeps about its own progress.
type State struct {
	Stage string
	Seq   int64
}

// StatePartial is a sparse update to State. Zero-value fields are left
// untouched by the store — Seq is only considered "set" when SeqSet is
// true, since 0 is a legitimate sequence number.
type StatePartial struct {
	Stage string
	Seq   int64
	SeqSet bool
}

// StateStore is the external state-store contract: a small
// JSON-shaped blob with get/save. The default implementation lives in
// internal/state; tests supply fakes.
type StateStore interface {
	Get(ctx context.Context) (State, error)
	Save(ctx context.Context, partial StatePartial) error
}

// Document is the authoritative document fetched from the registry.
type Document struct {
	ID       string
	Rev      string
	Deleted  bool
	Contents map[string]any
}

// RegistryInfo is the registry's reported head, used only for telemetry.
type RegistryInfo struct {
	UpdateSeq int64
}

// RegistryReader is the change-feed half of the registry contract.
// Implementations must be resumable from any previously delivered seq.
type RegistryReader interface {
	// Start begins delivering changes from since (exclusive) to onChange,
	// one at a time, batch size 1, documents excluded. onError reports
	// transport-level errors without tearing down the subscription.
	Start(ctx context.Context, since int64, onChange func(Change), onError func(error)) error
	Pause()
	Resume()
	Stop()
}

// RegistryFetcher is the document-fetch half of the registry contract.
type RegistryFetcher interface {
	GetDoc(ctx context.Context, id, rev string) (Document, error)
	Info(ctx context.Context) (RegistryInfo, error)
}

// Record is the formatted, indexable representation of a Document.
type Record struct {
	ObjectID string
	Fields   map[string]any
}

// Formatter is the pure Document → Record|skip contract. A nil
// Record with a nil error means "skip".
type Formatter interface {
	Format(doc Document) (*Record, error)
}

// FacetBucket is one value returned from a faceted search over the
// search index's _searchInternal.expiresAt field.
type FacetBucket struct {
	Value string
	Count int
}

// StaleRecord is one hit from the refresh scanner's bucket fetch.
type StaleRecord struct {
	ID       string
	Rev      string
	Modified int64 // unix seconds
}

// IndexClient is the search-index half of the external contract.
type IndexClient interface {
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, id string) error
	// FacetValues returns the sorted set of values in the given facet.
	FacetValues(ctx context.Context, facet string) ([]FacetBucket, error)
	// StaleInBucket fetches up to limit records whose expiresAt facet
	// equals bucket.
	StaleInBucket(ctx context.Context, bucket string, limit int) ([]StaleRecord, error)
}

// LostIndexClient is the write-only forensic sink.
type LostIndexClient interface {
	Upsert(ctx context.Context, job Job, reason string) error
}

// ErrorSink reports recoverable errors. Never fatal.
type ErrorSink interface {
	ReportError(ctx context.Context, err error, fields map[string]any)
}

// Telemetry is the counters/gauges/timings contract. All methods
// must be safe to call concurrently and must never block the caller on
// a slow sink.
type Telemetry interface {
	IncPackages()
	SetTotalSequence(seq int64)
	ObserveHandlerDuration(d float64)
	SetQueueLength(n int)
	SetParkedCount(n int)
}
