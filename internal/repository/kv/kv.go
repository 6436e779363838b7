// Package kv persists small string settings in a SQLite key/value table.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// StoreError describes a failed storage operation.
type StoreError struct {
	Op  string // "open", "get", "set", "delete"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("kv %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kv %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

const schema = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store is a process-wide key/value table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("ping failed: %w", err)}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("create schema: %w", err)}
	}

	return &Store{db: db}, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &StoreError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// Set writes value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
