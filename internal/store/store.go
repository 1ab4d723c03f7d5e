// Package store persists session lifecycle events in SQLite and owns the
// server's long-lived database connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed      = errors.New("store: closed")
	ErrUnavailable = errors.New("store: unavailable")
)

type EventKind string

const (
	EventOpen      EventKind = "open"
	EventClose     EventKind = "close"
	EventMalformed EventKind = "malformed"
)

// Event is one row of the session_events table.
type Event struct {
	ID        int64
	SessionID string
	Kind      EventKind
	Remote    string
	Detail    string
	At        time.Time
}

// Store wraps a sqlite handle that can be replaced when a health check fails.
type Store struct {
	path string

	mu     sync.RWMutex
	db     *sql.DB
	closed bool

	reopens atomic.Uint64
}

// Open creates the database file and its parent directory if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		remote TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		at_unix_nano INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Path() string {
	return s.path
}

// Reopens counts successful connection repairs made by Check.
func (s *Store) Reopens() uint64 {
	return s.reopens.Load()
}

// Check pings the database and reopens it once if the ping fails.
func (s *Store) Check(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	pingErr := db.PingContext(ctx)
	if pingErr == nil {
		return nil
	}
	log.Warn().Err(pingErr).Str("path", s.path).Msg("store.Check ping failed, reopening")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.db != db {
		// another caller already repaired it
		return nil
	}
	fresh, err := openDB(ctx, s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	_ = s.db.Close()
	s.db = fresh
	n := s.reopens.Add(1)
	log.Info().Str("path", s.path).Uint64("reopens", n).Msg("store.Check reopened database")
	return nil
}

func (s *Store) RecordEvent(ctx context.Context, ev Event) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, kind, remote, detail, at_unix_nano) VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, string(ev.Kind), ev.Remote, ev.Detail, ev.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record %s event for %s: %w", ev.Kind, ev.SessionID, err)
	}
	return nil
}

// Events returns a session's events oldest first. limit <= 0 means no limit.
func (s *Store) Events(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, kind, remote, detail, at_unix_nano FROM session_events
		WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev   Event
			kind string
			at   int64
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &kind, &ev.Remote, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.At = time.Unix(0, at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) CountEvents(ctx context.Context, kind EventKind) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events WHERE kind = ?`, string(kind),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s events: %w", kind, err)
	}
	return n, nil
}

// Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}
