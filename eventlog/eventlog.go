// Package eventlog records domain events (product picked, try-on run,
// cart changed) in the shared SQLite file. Recording is best-effort: a
// failing event store logs a warning but never blocks the surface that
// produced the event.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ynl8015/otfit/idgen"
)

// Schema contains the DDL for the event table. Call Init(db) to apply
// it; the table lives alongside the shared state tables in the same
// database file.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
    event_id   TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    mall       TEXT,
    backend    TEXT,
    detail     TEXT,
    success    INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(created_at DESC);
`

// Init applies the event schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Event kinds recorded across the surfaces.
const (
	KindProductPicked  = "product_picked"
	KindTryOnStarted   = "tryon_started"
	KindTryOnFinished  = "tryon_finished"
	KindTryOnFailed    = "tryon_failed"
	KindCartAdded      = "cart_added"
	KindCartRemoved    = "cart_removed"
	KindMoodboardSaved = "moodboard_saved"
	KindSessionReset   = "session_reset"
)

// Event is one domain event to record.
type Event struct {
	Kind    string
	Mall    string
	Backend string
	Detail  string // optional JSON
	Success bool
}

// Logger writes events and manages retention cleanup.
type Logger struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Logger.
type Option func(*Logger)

// WithIDGenerator sets a custom ID generator for event IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.newID = gen }
}

// New creates a Logger backed by the given database.
func New(db *sql.DB, opts ...Option) *Logger {
	l := &Logger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log records an event. Errors are logged via slog but do not
// propagate.
func (l *Logger) Log(ctx context.Context, event Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events (event_id, kind, mall, backend, detail, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.newID(), event.Kind, event.Mall, event.Backend, event.Detail, event.Success,
		time.Now().Unix())
	if err != nil {
		slog.Error("eventlog: record failed", "error", err, "kind", event.Kind)
	}
}

// Record is one stored event as read back from the table.
type Record struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Mall      string `json:"mall,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Success   bool   `json:"success"`
	CreatedAt int64  `json:"created_at"`
}

// Recent returns the newest events, at most limit rows.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, kind, COALESCE(mall,''), COALESCE(backend,''),
		       COALESCE(detail,''), success, created_at
		FROM events ORDER BY created_at DESC, event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.EventID, &r.Kind, &r.Mall, &r.Backend, &r.Detail, &r.Success, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero or negative means no
// cleanup.
func (l *Logger) Cleanup(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(days)*86400
	if _, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("eventlog: cleanup: %w", err)
	}
	return nil
}
