package searchindex

import (
	"context"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// LostClient is a write-only handle onto the forensic "lost" index: jobs
// that exhausted their retry budget land here so an operator can see
// what was abandoned, without that write blocking or retrying the
// pipeline itself.
type LostClient struct {
	client *Client
}

// NewLostClient wraps client, which should be constructed with the lost
// index's name.
func NewLostClient(client *Client) *LostClient {
	return &LostClient{client: client}
}

// Upsert records a parked job and the reason it was parked.
func (l *LostClient) Upsert(ctx context.Context, job watch.Job, reason string) error {
	fields := map[string]any{
		"seq":     job.Change.Seq,
		"deleted": job.Change.Deleted,
		"retry":   job.Retry,
		"reason":  reason,
	}

	if len(job.Change.Changes) > 0 {
		fields["rev"] = job.Change.Changes[0].Rev
	}

	return l.client.Upsert(ctx, watch.Record{ObjectID: job.Change.ID, Fields: fields})
}
