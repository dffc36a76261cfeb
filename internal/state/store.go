// Package state is the default watch.StateStore implementation: a
// single-file embedded sqlite database holding the {stage, seq}
// checkpoint row, plus a local lost_jobs table that backs the
// best-effort fallback sink for jobs that exhausted retries while the
// external lost search index was itself unreachable.
package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go sqlite driver, registers as "sqlite"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements watch.StateStore and the local lost-job fallback
// sink over an embedded sqlite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt       *sql.Stmt
	saveStmt      *sql.Stmt
	recordLostStmt *sql.Stmt
}

// Open creates or opens the sqlite database at path (":memory:" is
// valid, mainly for tests), applies pending migrations, and prepares
// statements. Runs in WAL mode with goose-managed schema migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening state database", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepare(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: prepare statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("state: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("state: migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("state: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("state: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration", slog.String("source", r.Source.Path))
	}

	return nil
}

const (
	sqlGetState = `SELECT stage, seq FROM pipeline_state WHERE id = 1`

	sqlSaveState = `INSERT INTO pipeline_state (id, stage, seq)
		VALUES (1, COALESCE(?, ''), COALESCE(?, 0))
		ON CONFLICT(id) DO UPDATE SET
			stage = CASE WHEN excluded.stage <> '' THEN excluded.stage ELSE pipeline_state.stage END,
			seq   = CASE WHEN ? THEN excluded.seq ELSE pipeline_state.seq END`

	sqlRecordLost = `INSERT INTO lost_jobs (id, seq, deleted, retry, rev, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq, deleted = excluded.deleted, retry = excluded.retry,
			rev = excluded.rev, reason = excluded.reason, recorded_at = excluded.recorded_at`
)

func (s *Store) prepare(ctx context.Context) error {
	var err error

	if s.getStmt, err = s.db.PrepareContext(ctx, sqlGetState); err != nil {
		return err
	}

	if s.saveStmt, err = s.db.PrepareContext(ctx, sqlSaveState); err != nil {
		return err
	}

	if s.recordLostStmt, err = s.db.PrepareContext(ctx, sqlRecordLost); err != nil {
		return err
	}

	return nil
}

// Get returns the persisted checkpoint, or the zero State if none has
// been saved yet.
func (s *Store) Get(ctx context.Context) (watch.State, error) {
	var st watch.State

	err := s.getStmt.QueryRowContext(ctx).Scan(&st.Stage, &st.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return watch.State{}, nil
	}

	if err != nil {
		return watch.State{}, fmt.Errorf("state: get: %w", err)
	}

	return st, nil
}

// Save persists partial, leaving any field it doesn't set unchanged.
func (s *Store) Save(ctx context.Context, partial watch.StatePartial) error {
	var stage any
	if partial.Stage != "" {
		stage = partial.Stage
	}

	var seq any
	if partial.SeqSet {
		seq = partial.Seq
	}

	if _, err := s.saveStmt.ExecContext(ctx, stage, seq, partial.SeqSet); err != nil {
		return fmt.Errorf("state: save: %w", err)
	}

	return nil
}

// Upsert implements watch.LostIndexClient against the local lost_jobs
// table. It is used as the fallback sink when the external lost search
// index is itself unreachable, so a parked job's forensic record is
// never silently dropped twice.
func (s *Store) Upsert(ctx context.Context, job watch.Job, reason string) error {
	var rev string
	if len(job.Change.Changes) > 0 {
		rev = job.Change.Changes[0].Rev
	}

	_, err := s.recordLostStmt.ExecContext(ctx,
		job.Change.ID, job.Change.Seq, job.Change.Deleted, job.Retry, rev, reason,
	)
	if err != nil {
		return fmt.Errorf("state: record lost job %s: %w", job.Change.ID, err)
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.logger.Info("closing state database")
	return s.db.Close()
}
