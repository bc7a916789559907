// Package database stores documents in an embedded sqlite key-value
// store so stage 2 tasks can fetch original document text by id.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// DBFileName is the store file inside the database artifact directory.
const DBFileName = "docs.db"

// Store is a key-value document store backed by sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a document store at the given file
// path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing document store: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores a value under a key, replacing any existing value.
func (s *Store) Put(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO documents (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("storing document %s: %w", key, err)
	}
	return nil
}

// Insert stores a value under a key that must not exist yet. A
// collision is a DuplicateKeyError; merges use this to reject shard
// outputs that overlap.
func (s *Store) Insert(key, value string) error {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM documents WHERE key = ?`, key).Scan(&one)
	if err == nil {
		return &DuplicateKeyError{Key: key}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking document %s: %w", key, err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO documents (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("storing document %s: %w", key, err)
	}
	return nil
}

// Get fetches the value stored under a key.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %s not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("fetching document %s: %w", key, err)
	}
	return value, nil
}

// Count returns the number of stored documents.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Each calls fn for every key-value pair in the store.
func (s *Store) Each(fn func(key, value string) error) error {
	rows, err := s.db.Query(`SELECT key, value FROM documents ORDER BY key`)
	if err != nil {
		return fmt.Errorf("scanning document store: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scanning document store: %w", err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning document store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
