package watch

import (
	"errors"
	"fmt"
)

// Sentinel error kinds classified by the process-one-change pipeline
// and interpreted by the ordered worker's per-job wrapper. Check with
// errors.Is.
var (
	// ErrDeleted signals the document is gone — either the feed said so
	// or the fetch came back as a lookup failure. The wrapper deletes the
	// document from the index and treats this as success.
	ErrDeleted = errors.New("watch: document deleted")

	// ErrFetch signals the registry document fetch failed for a reason
	// other than "gone". Transient — retried by the wrapper.
	ErrFetch = errors.New("watch: document fetch failed")

	// ErrFormat signals the formatter returned an error rather than a
	// record or an explicit skip. Transient — retried by the wrapper.
	ErrFormat = errors.New("watch: format failed")

	// ErrUpsert signals the search-index upsert call failed. Transient —
	// retried by the wrapper.
	ErrUpsert = errors.New("watch: index upsert failed")

	// ErrRejectedEmptyID signals a job entered the queue with an empty
	// change id — a heartbeat that leaked past the reader driver's
	// filtering. A job whose change id is empty is always rejected at
	// queue entry.
	ErrRejectedEmptyID = errors.New("watch: job has empty package id")
)

// pipelineError wraps a sentinel kind with the upstream message so logs
// carry both the classification and the concrete cause.
type pipelineError struct {
	kind Kind
	msg  string
}

// Kind names one of the process-one-change failure classifications.
type Kind int

const (
	// KindNone is the zero value: no classified failure.
	KindNone Kind = iota
	KindDeleted
	KindFetch
	KindFormat
	KindUpsert
)

func (e *pipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.sentinel(), e.msg)
}

func (e *pipelineError) sentinel() error {
	switch e.kind {
	case KindDeleted:
		return ErrDeleted
	case KindFetch:
		return ErrFetch
	case KindFormat:
		return ErrFormat
	case KindUpsert:
		return ErrUpsert
	default:
		return nil
	}
}

func (e *pipelineError) Unwrap() error {
	return e.sentinel()
}

func newDeletedError(msg string) error { return &pipelineError{kind: KindDeleted, msg: msg} }
func newFetchError(msg string) error   { return &pipelineError{kind: KindFetch, msg: msg} }
func newFormatError(msg string) error  { return &pipelineError{kind: KindFormat, msg: msg} }
func newUpsertError(msg string) error  { return &pipelineError{kind: KindUpsert, msg: msg} }
