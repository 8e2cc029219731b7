package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"overdub/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes. A version mismatch asks
// the user to delete the ledger database rather than migrating in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger database was written by a
// different version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Run is one recorded dubbing run.
type Run struct {
	ID            string
	SubtitlePath  string
	OutputPath    string
	Voice         string
	Status        string
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalCues     int
	Generated     int
	Cached        int
	Resumed       int
	Failed        int
	OutputSeconds float64
	TargetSeconds float64
	Error         string
}

// Store is a SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open connects to the ledger database at path, creating the schema when
// needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the ledger database to reset)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// RecordStart inserts a running row and returns its run ID.
func (s *Store) RecordStart(ctx context.Context, subtitlePath, outputPath, voice string) (string, error) {
	id := uuid.NewString()
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, subtitle_path, output_path, voice, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, subtitlePath, outputPath, voice, StatusRunning, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// RecordFinish marks the run complete or failed and stores its stats.
func (s *Store) RecordFinish(ctx context.Context, id string, stats report.Stats, runErr error) error {
	status := StatusCompleted
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, total_cues = ?, generated = ?,
		 cached = ?, resumed = ?, failed = ?, output_seconds = ?, target_seconds = ?, error = ?
		 WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339),
		stats.Total, stats.Generated, stats.Cached, stats.Resumed, stats.Failed,
		stats.OutputSeconds, stats.TargetSeconds, errText, id)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subtitle_path, output_path, voice, status, started_at, finished_at,
		 total_cues, generated, cached, resumed, failed, output_seconds, target_seconds, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.SubtitlePath, &run.OutputPath, &run.Voice,
			&run.Status, &startedAt, &finishedAt,
			&run.TotalCues, &run.Generated, &run.Cached, &run.Resumed, &run.Failed,
			&run.OutputSeconds, &run.TargetSeconds, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
