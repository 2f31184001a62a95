// Package history persists a local ledger of past upload invocations in an
// embedded SQLite database. Recording is best-effort: a ledger failure never
// fails the upload that produced it.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Task status values for the tasks.status column.
const (
	StatusUploaded = "uploaded"
	StatusPartial  = "partial" // uploaded, but the share grant failed
	StatusFailed   = "failed"
)

// Invocation is one recorded run: what was uploaded, when, and how it went.
type Invocation struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string // local path given on the command line
	Mode       string // "file", "directory" or "archive"
	Succeeded  int
	Failed     int
}

// TaskRecord is the outcome of a single upload within an invocation.
type TaskRecord struct {
	Name        string
	RemoteID    string
	WebViewLink string
	SizeBytes   int64
	Attempts    int
	Status      string
	Error       string
}

// Store wraps the history database. A single connection keeps SQLite writes
// serialized.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the history database at dbPath and applies pending
// migrations. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()

			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied history migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record writes one invocation and its task outcomes in a single transaction
// and returns the generated invocation ID.
func (s *Store) Record(ctx context.Context, inv Invocation, tasks []TaskRecord) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invocations (id, started_at, finished_at, source, mode, succeeded, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, inv.StartedAt.Unix(), inv.FinishedAt.Unix(), inv.Source, inv.Mode, inv.Succeeded, inv.Failed)
	if err != nil {
		return "", fmt.Errorf("history: insert invocation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (invocation_id, name, remote_id, web_view_link, size_bytes, attempts, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("history: prepare task insert: %w", err)
	}
	defer stmt.Close()

	for _, task := range tasks {
		_, err = stmt.ExecContext(ctx,
			id, task.Name, task.RemoteID, task.WebViewLink,
			task.SizeBytes, task.Attempts, task.Status, task.Error)
		if err != nil {
			return "", fmt.Errorf("history: insert task %q: %w", task.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("history: commit: %w", err)
	}

	return id, nil
}

// Recent returns the most recent invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source, mode, succeeded, failed
		 FROM invocations ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation

	for rows.Next() {
		var (
			inv                  Invocation
			startedAt, finishedAt int64
		)

		if err := rows.Scan(&inv.ID, &startedAt, &finishedAt,
			&inv.Source, &inv.Mode, &inv.Succeeded, &inv.Failed); err != nil {
			return nil, fmt.Errorf("history: scan invocation: %w", err)
		}

		inv.StartedAt = time.Unix(startedAt, 0)
		inv.FinishedAt = time.Unix(finishedAt, 0)
		out = append(out, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate invocations: %w", err)
	}

	return out, nil
}

// Tasks returns the task outcomes recorded for one invocation, in insertion
// order.
func (s *Store) Tasks(ctx context.Context, invocationID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, remote_id, web_view_link, size_bytes, attempts, status, error
		 FROM tasks WHERE invocation_id = ? ORDER BY id`, invocationID)
	if err != nil {
		return nil, fmt.Errorf("history: query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord

	for rows.Next() {
		var task TaskRecord

		if err := rows.Scan(&task.Name, &task.RemoteID, &task.WebViewLink,
			&task.SizeBytes, &task.Attempts, &task.Status, &task.Error); err != nil {
			return nil, fmt.Errorf("history: scan task: %w", err)
		}

		out = append(out, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate tasks: %w", err)
	}

	return out, nil
}
