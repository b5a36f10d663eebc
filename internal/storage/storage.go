// Package storage persists alert state and history in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tradewatch/internal/alert"
	"tradewatch/internal/logger"
)

// Store wraps the SQLite database. The driver is single-writer, so all
// writes serialize through a mutex; WAL keeps readers unblocked.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// HistoryEntry is one delivered alert as recorded in history.
type HistoryEntry struct {
	ID        string
	Type      string
	Priority  string
	Title     string
	Body      string
	CreatedAt time.Time
}

// Open opens (creating if needed) the database at path and runs the
// schema migration.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Storage ready at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alert_state (
		key       TEXT PRIMARY KEY,
		marked_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS alert_history (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		priority   TEXT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_created ON alert_history(created_at);
	CREATE TABLE IF NOT EXISTS session_baseline (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		date        TEXT NOT NULL,
		balance     REAL NOT NULL,
		peak_equity REAL NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has implements alert.StateStore.
func (s *Store) Has(key string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM alert_state WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query alert state: %w", err)
	}
	return true, nil
}

// Mark implements alert.StateStore.
func (s *Store) Mark(key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO alert_state (key, marked_at) VALUES (?, ?)`, key, at)
	if err != nil {
		return fmt.Errorf("failed to mark alert state: %w", err)
	}
	return nil
}

// Clear implements alert.StateStore.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM alert_state WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to clear alert state: %w", err)
	}
	return nil
}

// ClearPrefix implements alert.StateStore.
func (s *Store) ClearPrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM alert_state WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return fmt.Errorf("failed to clear alert state prefix: %w", err)
	}
	return nil
}

// RecordAlert appends a delivered alert to history.
func (s *Store) RecordAlert(a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO alert_history (id, type, priority, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(a.Type), string(a.Priority), a.Title, a.Body, a.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// History returns delivered alerts since the given time, newest first.
func (s *Store) History(since time.Time) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, type, priority, title, body, created_at
		 FROM alert_history WHERE created_at >= ? ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Priority, &e.Title, &e.Body, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveBaseline upserts the day-start balance and equity peak.
func (s *Store) SaveBaseline(date string, balance, peak float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO session_baseline (id, date, balance, peak_equity) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET date = excluded.date, balance = excluded.balance, peak_equity = excluded.peak_equity`,
		date, balance, peak)
	if err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

// LoadBaseline returns the stored baseline; ok is false when none has
// been saved yet.
func (s *Store) LoadBaseline() (date string, balance, peak float64, ok bool, err error) {
	err = s.db.QueryRow(`SELECT date, balance, peak_equity FROM session_baseline WHERE id = 1`).
		Scan(&date, &balance, &peak)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, 0, false, nil
	}
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("failed to load baseline: %w", err)
	}
	return date, balance, peak, true, nil
}
