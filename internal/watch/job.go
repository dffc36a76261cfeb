package watch

import "github.com/quinton-ashley/npm-search/internal/pkgid"

// Change is a single change-feed descriptor. An empty ID marks a
// heartbeat. Seq -1 marks a synthetic change injected by the refresh
// scanner — it must never be checkpointed.
type Change struct {
	ID      string
	Seq     int64
	Deleted bool
	Changes []ChangeRev
}

// ChangeRev is a single revision entry on a Change. The watcher only
// ever looks at the first entry.
type ChangeRev struct {
	Rev string
}

// refreshSyntheticSeq is the sentinel seq value the refresh scanner uses for
// synthetic changes: "do not checkpoint this".
const refreshSyntheticSeq int64 = -1

// PackageID returns the normalized identity of the change's subject.
func (c Change) PackageID() pkgid.ID {
	return pkgid.New(c.ID)
}

// IsHeartbeat reports whether this change carries no package id.
func (c Change) IsHeartbeat() bool {
	return c.ID == ""
}

// IsSynthetic reports whether this change was injected by the refresh
// scanner rather than read from the live feed.
func (c Change) IsSynthetic() bool {
	return c.Seq == refreshSyntheticSeq
}

// Job is the unit of work carried through the ordered worker.
// It is constructed by the reader driver, the reaper, and the refresh
// scanner; consumed by the ordered worker; mutated only by the worker
// (retry increments on failure).
type Job struct {
	Change    Change
	Retry     int
	IgnoreSeq bool
}

// id returns the normalized package identity this job is keyed on.
// Equality of jobs for parked-set purposes is defined entirely by this.
func (j Job) id() pkgid.ID {
	return j.Change.PackageID()
}

// exceeded reports whether this job has used up its allotted in-queue
// retries and must be parked instead of requeued. retry is always
// kept within 0 ≤ retry ≤ retryMax+1.
func (j Job) exceeded(retryMax int) bool {
	return j.Retry > retryMax
}

// withRetryIncrement returns a copy of j with Retry incremented by one.
func (j Job) withRetryIncrement() Job {
	j.Retry++

	return j
}

// asIgnoreSeqRetry returns a copy of j prepared for reinjection by the
// reaper or refresh scanner: retry reset to zero, ignoreSeq forced true
// because the job's seq is now known-stale relative to the checkpoint.
func (j Job) asIgnoreSeqRetry() Job {
	j.Retry = 0
	j.IgnoreSeq = true

	return j
}
