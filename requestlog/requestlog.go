// Package requestlog persists a record of every extraction request to
// sqlite for operational review: what came in, what the pipeline decided,
// and how long it took.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/priorauth/dbopen"
	"github.com/hazyhaar/priorauth/idgen"
)

// Entry is one processed extraction request.
type Entry struct {
	RequestID    string
	Filename     string
	FileType     string
	Action       string
	MissingCount int
	WarningCount int
	DurationMs   int64
	Status       string // "success" or "error"
	CreatedAt    int64  // unix seconds, filled by Log when zero
}

// Store writes and queries extraction request records.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for request IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a store backed by the given database.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed("req_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the request log schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS extraction_requests (
				request_id    TEXT PRIMARY KEY,
				filename      TEXT NOT NULL,
				file_type     TEXT NOT NULL,
				action        TEXT NOT NULL,
				missing_count INTEGER NOT NULL,
				warning_count INTEGER NOT NULL,
				duration_ms   INTEGER NOT NULL,
				status        TEXT NOT NULL,
				created_at    INTEGER NOT NULL
			)`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_extraction_requests_created
				ON extraction_requests(created_at)`)
		return err
	})
	if err != nil {
		return fmt.Errorf("init request log schema: %w", err)
	}
	return nil
}

// Log records a processed request. Writes retry briefly on lock contention;
// remaining errors are logged via slog but do not propagate, so a failing
// log store never blocks extraction.
func (s *Store) Log(ctx context.Context, e Entry) {
	if e.RequestID == "" {
		e.RequestID = s.newID()
	}
	if e.Status == "" {
		e.Status = "success"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO extraction_requests (
			request_id, filename, file_type, action,
			missing_count, warning_count, duration_ms, status, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.RequestID, e.Filename, e.FileType, e.Action,
		e.MissingCount, e.WarningCount, e.DurationMs, e.Status, e.CreatedAt)
	if err != nil {
		slog.Error("request log write failed", "error", err, "filename", e.Filename)
	}
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, filename, file_type, action,
		       missing_count, warning_count, duration_ms, status, created_at
		FROM extraction_requests
		ORDER BY created_at DESC, request_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query request log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RequestID, &e.Filename, &e.FileType, &e.Action,
			&e.MissingCount, &e.WarningCount, &e.DurationMs, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request log row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than retentionDays and returns the number
// removed. Zero or negative retention means no cleanup.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	result, err := dbopen.Exec(ctx, s.db,
		"DELETE FROM extraction_requests WHERE created_at < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("request log cleanup: %w", err)
	}
	return result.RowsAffected()
}
