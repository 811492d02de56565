// Package storage persists the four entity kinds in SQLite and enforces
// relationship integrity: cascading deletes, many-to-many project membership
// and eager child loading so totals never need a per-child round trip.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"notaspese/internal/audit"

	_ "modernc.org/sqlite"
)

// ErrNotFound signals that the requested id does not exist.
var ErrNotFound = errors.New("not found")

// DefaultTimeout bounds every storage operation unless configured otherwise.
const DefaultTimeout = 5 * time.Second

// dateLayout is the precision receipts carry: a calendar date, set by the
// server at creation.
const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db       *sql.DB
	recorder audit.Recorder
	timeout  time.Duration
}

func NewSQLiteRepository(dbPath string, recorder audit.Recorder) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Cascading deletes depend on foreign key enforcement. The pragma goes
	// into the DSN so every pooled connection gets it, not just the one
	// that happens to run an Exec.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if recorder == nil {
		recorder = audit.NopRecorder{}
	}

	return &SQLiteRepository{
		db:       db,
		recorder: recorder,
		timeout:  DefaultTimeout,
	}, nil
}

// SetTimeout overrides the per-operation deadline.
func (r *SQLiteRepository) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// opCtx bounds a storage operation with the repository timeout.
func (r *SQLiteRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// withTx runs fn inside a transaction so multi-row writes (cascades,
// membership replacement) apply all-or-nothing.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// emit records an audit event for a successful mutation. Sink failures are
// logged and swallowed: the mutation already committed.
func (r *SQLiteRepository) emit(ctx context.Context, ev audit.Event) {
	if err := r.recorder.Record(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Audit sink rejected event",
			"error", err,
			"kind", ev.Kind,
			"entity_id", ev.EntityID,
			"action", string(ev.Action))
	}
}

// exists reports whether the given id is present in table.
func exists(ctx context.Context, q queryer, table, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s existence: %w", table, err)
	}
	return true, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
