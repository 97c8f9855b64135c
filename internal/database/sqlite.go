package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// openSQLite opens a SQLite database file, creating its directory
func openSQLite(cfg Config, logger *zap.Logger) (*DB, error) {
	if err := ensureDBDir(cfg.DSN); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between pooled connections
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1

	d, err := newDB("sqlite3", addSQLiteParams(cfg.DSN), cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := initSQLite(d); err != nil {
		_ = d.db.Close()
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	return d, nil
}

// initSQLite applies pragmas not expressible as DSN parameters
func initSQLite(d *DB) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"synchronous", "NORMAL"},
		{"temp_store", "MEMORY"},
		{"cache_size", "-2000"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := d.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma.name, err)
		}
	}
	return nil
}

// sqlitePath extracts the file path from a DSN
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// ensureDBDir ensures database directory exists
func ensureDBDir(dsn string) error {
	path := sqlitePath(dsn)
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// addSQLiteParams adds SQLite specific connection parameters
func addSQLiteParams(dsn string) string {
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=1",
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
