package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"subburn/internal/config"
)

// Store manages request history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schemaSQL = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE requests (
    id               TEXT PRIMARY KEY,
    filename         TEXT NOT NULL,
    state            TEXT NOT NULL,
    error_message    TEXT,
    cue_count        INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE INDEX idx_requests_created_at ON requests (created_at DESC);
`

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases must be deleted after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no request row exists for the given id.
var ErrNotFound = errors.New("request not found")

// Open initializes or connects to the history database under the log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "history.db"))
}

// OpenPath opens the history database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
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

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
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
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// NewRequest inserts a fresh request row in the created state.
func (s *Store) NewRequest(ctx context.Context, id, filename string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("request id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, filename, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id, filename, StateCreated, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetState advances a request to the given state.
func (s *Store) SetState(ctx context.Context, id string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("unknown state %q", state)
	}
	return s.update(ctx,
		`UPDATE requests SET state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
}

// MarkFailed moves a request to the failed state and records the error text.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.update(ctx,
		`UPDATE requests SET state = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StateFailed, message, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
}

// MarkCleaned records the cleaned state unless the request already failed.
// Failed requests keep their failure record; the workspace sweep handles any
// leftover files either way.
func (s *Store) MarkCleaned(ctx context.Context, id string) error {
	return s.update(ctx,
		`UPDATE requests SET state = ?, updated_at = ? WHERE id = ? AND state != ?`,
		StateCleaned, time.Now().UTC().Format(time.RFC3339Nano), id, StateFailed,
	)
}

// SetTranscript records transcript metadata for a request.
func (s *Store) SetTranscript(ctx context.Context, id string, cueCount int, durationSeconds float64) error {
	return s.update(ctx,
		`UPDATE requests SET cue_count = ?, duration_seconds = ?, updated_at = ? WHERE id = ?`,
		cueCount, durationSeconds, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns the request row for id.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, state, error_message, cue_count, duration_seconds,
                created_at, updated_at
         FROM requests WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return rec, nil
}

// ListRecent returns the most recent requests, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, state, error_message, cue_count, duration_seconds,
                created_at, updated_at
         FROM requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		state     string
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &state, &errMsg,
		&rec.CueCount, &rec.DurationSeconds, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.State = State(state)
	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}
