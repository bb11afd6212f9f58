// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// SlowOpenThreshold marks connection setup as slow in the performance channel.
const SlowOpenThreshold = 500 * time.Millisecond

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// NewConnection establishes a new database connection for the specified driver.
func NewConnection(driverName, dataSourceName string) (*DB, error) {
	return NewConnectionWithLogger(driverName, dataSourceName, logging.NewNopLogger())
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Storage().Debug("Creating new database connection", "driverName", driverName, "dsn", dataSourceName)

	if err := ensureDir(dataSourceName); err != nil {
		logger.Storage().Error("Failed to create database directory", "error", err.Error(), "dsn", dataSourceName)
		return nil, err
	}

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Storage().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	// SQLite allows a single writer; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		logger.Storage().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("%s database ping failed: %w", driverName, err)
	}

	duration := time.Since(start)
	logger.Storage().Info("Database connection established", "driverName", driverName, "duration", duration)
	if duration > SlowOpenThreshold {
		logger.Perf().Warn("Slow database connection", "driverName", driverName, "duration", duration)
	}

	return &DB{DB: db, Driver: driverName}, nil
}

// ensureDir creates the parent directory of a file-backed DSN.
func ensureDir(dataSourceName string) error {
	path := strings.TrimPrefix(dataSourceName, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":memory:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
