// Package store persists verification session snapshots in SQLite.
// Three snapshot keys mirror the session aggregate: the verification
// state machine, the assistant-side loop state, and the conversation
// history. Loads are best-effort: a missing or corrupt snapshot yields a
// fresh session rather than an error surfaced to the user.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"verdict/internal/logging"
)

// Snapshot keys. These names are part of the on-disk contract.
const (
	KeySessionState        = "session_state"
	KeyAssistantState      = "assistant_state"
	KeyConversationHistory = "conversation_history"
)

// ErrNotFound is returned by Load when no snapshot exists under the key.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore is a small key-value store over SQLite. One row per key,
// Save overwrites.
type SnapshotStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the SQLite database at the given path, creating the
// parent directory if needed.
func Open(path string) (*SnapshotStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SnapshotStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("Snapshot store opened at %s", path)
	return s, nil
}

func (s *SnapshotStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Save serializes v as JSON and overwrites the snapshot under key.
func (s *SnapshotStore) Save(key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	logging.StoreDebug("Saved snapshot %s (%d bytes)", key, len(data))
	return nil
}

// Load deserializes the snapshot under key into dest. Returns ErrNotFound
// when no snapshot exists.
func (s *SnapshotStore) Load(key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot under key. Deleting a missing key is not an
// error.
func (s *SnapshotStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// Reset removes all session snapshots.
func (s *SnapshotStore) Reset() error {
	for _, key := range []string{KeySessionState, KeyAssistantState, KeyConversationHistory} {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	logging.Store("All session snapshots cleared")
	return nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
