package database

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// openMySQL opens a MySQL database
func openMySQL(cfg Config, logger *zap.Logger) (*DB, error) {
	d, err := newDB("mysql", addMySQLParams(cfg.DSN), cfg, logger)
	if err != nil {
		return nil, err
	}

	if _, err := d.ExecContext(context.Background(), "SET time_zone = '+00:00'"); err != nil {
		_ = d.db.Close()
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}
	return d, nil
}

// addMySQLParams adds parameters required for time scanning
func addMySQLParams(dsn string) string {
	params := []string{"charset=utf8mb4"}
	if !strings.Contains(dsn, "parseTime=") {
		params = append(params, "parseTime=true")
	}
	if !strings.Contains(dsn, "loc=") {
		params = append(params, "loc=UTC")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
