package database

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// openPostgres opens PostgreSQL through lib/pq
func openPostgres(cfg Config, logger *zap.Logger) (*DB, error) {
	return openPostgresWith("postgres", cfg, logger)
}

// openPgx opens PostgreSQL through the pgx stdlib driver
func openPgx(cfg Config, logger *zap.Logger) (*DB, error) {
	return openPostgresWith("pgx", cfg, logger)
}

func openPostgresWith(sqlDriver string, cfg Config, logger *zap.Logger) (*DB, error) {
	d, err := newDB(sqlDriver, addPostgresParams(cfg.DSN), cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := initPostgres(d); err != nil {
		_ = d.db.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return d, nil
}

// initPostgres sets session variables
func initPostgres(d *DB) error {
	vars := []struct {
		name  string
		value string
	}{
		{"timezone", "'UTC'"},
		{"statement_timeout", "'30s'"},
		{"lock_timeout", "'10s'"},
	}

	for _, v := range vars {
		query := fmt.Sprintf("SET %s = %s", v.name, v.value)
		if _, err := d.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.name, err)
		}
	}
	return nil
}

// addPostgresParams disables TLS unless the DSN says otherwise
func addPostgresParams(dsn string) string {
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	// key=value DSNs take a space separated parameter
	if !strings.Contains(dsn, "://") {
		return dsn + " sslmode=disable"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "sslmode=disable"
}
