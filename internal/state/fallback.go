package state

import (
	"context"
	"log/slog"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// FallbackLostIndex tries primary first and, only if that fails, falls
// back to this store's local lost_jobs table — so a parked job's
// forensic record survives even when the external lost index is down.
type FallbackLostIndex struct {
	primary watch.LostIndexClient
	store   *Store
	logger  *slog.Logger
}

// NewFallbackLostIndex wraps primary with store as its local fallback.
func NewFallbackLostIndex(primary watch.LostIndexClient, store *Store, logger *slog.Logger) *FallbackLostIndex {
	if logger == nil {
		logger = slog.Default()
	}

	return &FallbackLostIndex{primary: primary, store: store, logger: logger}
}

// Upsert implements watch.LostIndexClient.
func (f *FallbackLostIndex) Upsert(ctx context.Context, job watch.Job, reason string) error {
	if err := f.primary.Upsert(ctx, job, reason); err != nil {
		f.logger.Warn("lost index unreachable, falling back to local store",
			slog.String("id", job.Change.ID), slog.String("error", err.Error()))

		return f.store.Upsert(ctx, job, reason)
	}

	return nil
}
