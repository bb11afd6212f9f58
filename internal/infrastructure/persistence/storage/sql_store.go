package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/persistence/database"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS storage_items (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`

// SQLStore is a Port persisted in a SQLite table, so the storage area
// survives process restarts.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates the backing table when needed.
func NewSQLStore(db *database.DB) (*SQLStore, error) {
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create storage_items table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Read(key string) (string, bool, error) {
	const query = `SELECT value FROM storage_items WHERE key = ?`

	var value string
	err := s.db.QueryRow(query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, wrapDBError(err))
	}
	return value, true, nil
}

func (s *SQLStore) Write(key, value string) error {
	const query = `
		INSERT INTO storage_items (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("write %q: %w", key, wrapDBError(err))
	}
	return nil
}

func (s *SQLStore) Delete(key string) error {
	const query = `DELETE FROM storage_items WHERE key = ?`

	if _, err := s.db.Exec(query, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, wrapDBError(err))
	}
	return nil
}

func (s *SQLStore) Keys() ([]string, error) {
	const query = `SELECT key FROM storage_items ORDER BY key`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", wrapDBError(err))
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// errDBClosed is the message of database/sql's unexported errDBClosed, which
// cannot be matched with errors.Is.
const errDBClosed = "sql: database is closed"

// wrapDBError maps a closed database or connection onto ErrUnavailable.
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || err.Error() == errDBClosed {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
