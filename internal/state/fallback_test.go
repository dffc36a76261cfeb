package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

type fakePrimaryLostIndex struct {
	err     error
	upserts []watch.Job
}

func (f *fakePrimaryLostIndex) Upsert(ctx context.Context, job watch.Job, reason string) error {
	if f.err != nil {
		return f.err
	}

	f.upserts = append(f.upserts, job)
	return nil
}

func TestFallbackLostIndex_Upsert_UsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &fakePrimaryLostIndex{}
	store := openTestStore(t)
	fb := NewFallbackLostIndex(primary, store, discardLogger())

	job := watch.Job{Change: watch.Change{ID: "left-pad"}}
	err := fb.Upsert(context.Background(), job, "retries exhausted")
	require.NoError(t, err)

	require.Len(t, primary.upserts, 1)

	var count int
	row := store.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM lost_jobs")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count, "local store must not be written when primary succeeds")
}

func TestFallbackLostIndex_Upsert_FallsBackToLocalStoreOnPrimaryError(t *testing.T) {
	primary := &fakePrimaryLostIndex{err: errors.New("lost index unreachable")}
	store := openTestStore(t)
	fb := NewFallbackLostIndex(primary, store, discardLogger())

	job := watch.Job{Change: watch.Change{ID: "left-pad", Seq: 9}}
	err := fb.Upsert(context.Background(), job, "retries exhausted")
	require.NoError(t, err)

	var id string
	row := store.db.QueryRowContext(context.Background(), "SELECT id FROM lost_jobs WHERE id = ?", "left-pad")
	require.NoError(t, row.Scan(&id))
	assert.Equal(t, "left-pad", id)
}
