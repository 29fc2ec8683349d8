package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Schema for the shared state database. Values are JSON text; a removed
// key keeps its row with a NULL value so the change watcher can report the
// removal. rev is a database-wide monotonic counter: every mutation stamps
// the rows it touches, which is what lets the watcher recover the changed
// key set after detecting movement.
const schema = `
CREATE TABLE IF NOT EXISTS state_rev (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	rev INTEGER NOT NULL
);
INSERT OR IGNORE INTO state_rev (id, rev) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	value      TEXT,
	rev        INTEGER NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_state_rev ON state(rev);
`

// DB is the SQLite-backed Store.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the shared state database at path with the
// production pragmas (WAL, busy_timeout, foreign_keys) and applies the
// schema. Parent directories are created as needed.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &DB{db: db}, nil
}

// OpenMemory opens an in-memory store for testing. MaxOpenConns(1)
// ensures every query hits the same in-memory database; the store closes
// automatically via t.Cleanup.
func OpenMemory(t testing.TB) *DB {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the database.
func (s *DB) Close() error { return s.db.Close() }

// Conn exposes the underlying handle for the Watcher and for components
// that keep their own tables (event log) in the same file.
func (s *DB) Conn() *sql.DB { return s.db }

// Get implements Store.
func (s *DB) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		var value sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return nil, fmt.Errorf("store: get %s: %w", key, err)
		}
		if value.Valid {
			out[key] = json.RawMessage(value.String)
		}
	}
	return out, nil
}

// Set implements Store. The batch runs in one transaction and every
// touched row is stamped with the next revision.
func (s *DB) Set(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string]string, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store: marshal %s: %w", key, err)
		}
		encoded[key] = string(data)
	}

	return s.withRev(ctx, func(tx *sql.Tx, rev int64) error {
		for key, data := range encoded {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO state (key, value, rev) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET
					value = excluded.value,
					rev = excluded.rev,
					updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
				key, data, rev)
			if err != nil {
				return fmt.Errorf("store: set %s: %w", key, err)
			}
		}
		return nil
	})
}

// Remove implements Store. Rows become NULL-valued tombstones so the
// removal is observable through the Watcher.
func (s *DB) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.withRev(ctx, func(tx *sql.Tx, rev int64) error {
		for _, key := range keys {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO state (key, value, rev) VALUES (?, NULL, ?)
				ON CONFLICT(key) DO UPDATE SET
					value = NULL,
					rev = excluded.rev,
					updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
				key, rev)
			if err != nil {
				return fmt.Errorf("store: remove %s: %w", key, err)
			}
		}
		return nil
	})
}

// withRev runs fn inside a transaction after advancing the global
// revision counter, handing fn the new revision to stamp rows with.
func (s *DB) withRev(ctx context.Context, fn func(tx *sql.Tx, rev int64) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE state_rev SET rev = rev + 1 WHERE id = 1 RETURNING rev`).Scan(&rev); err != nil {
		return fmt.Errorf("store: bump rev: %w", err)
	}
	if err := fn(tx, rev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// rev returns the current global revision.
func (s *DB) rev(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT rev FROM state_rev WHERE id = 1`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("store: read rev: %w", err)
	}
	return rev, nil
}

// changedSince returns the rows stamped after rev, in stamp order.
func (s *DB) changedSince(ctx context.Context, rev int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM state WHERE rev > ? ORDER BY rev, key`, rev)
	if err != nil {
		return nil, fmt.Errorf("store: changed since %d: %w", rev, err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		c := Change{Key: key, Removed: !value.Valid}
		if value.Valid {
			c.Value = json.RawMessage(value.String)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
