package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ipmonitor/internal/database"
	"ipmonitor/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	table        = "ip_changes"
	columnTime   = "observed_at"
	selectFields = "id, kind, previous_ip, current_ip, dns_updated, dns_error, notified, observed_at"
)

// Store persists change records
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

// Open connects to the configured database, runs migrations when enabled
// and starts retention pruning.
func Open(ctx context.Context, cfg database.Config, logger *zap.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, types.ErrHistoryDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	db.StartPruning(table, columnTime)

	return &Store{db: db, logger: logger.Named("history")}, nil
}

// Record inserts a change record, assigning an id and timestamp when unset
func (s *Store) Record(ctx context.Context, rec types.ChangeRecord) (types.ChangeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now()
	}
	rec.ObservedAt = rec.ObservedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+" ("+selectFields+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Kind, rec.PreviousIP, rec.CurrentIP,
		rec.DNSUpdated, rec.DNSError, rec.Notified, rec.ObservedAt)
	if err != nil {
		return rec, database.NewError("insert", "failed to record change", err)
	}

	s.logger.Debug("Change recorded",
		zap.String("id", rec.ID),
		zap.String("kind", rec.Kind),
		zap.String("ip", rec.CurrentIP))
	return rec, nil
}

// List returns records newest first
func (s *Store) List(ctx context.Context, filter types.ChangeFilter) ([]types.ChangeRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = types.DefaultChangeLimit
	}

	query := "SELECT " + selectFields + " FROM " + table
	var args []any
	if !filter.Since.IsZero() {
		query += " WHERE " + columnTime + " >= ?"
		args = append(args, filter.Since.UTC())
	}
	query += " ORDER BY " + columnTime + " DESC LIMIT ?"
	args = append(args, limit)

	records := make([]types.ChangeRecord, 0)
	err := s.db.QueryContext(ctx, query, func(rows *sql.Rows) error {
		var rec types.ChangeRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.PreviousIP, &rec.CurrentIP,
			&rec.DNSUpdated, &rec.DNSError, &rec.Notified, &rec.ObservedAt); err != nil {
			return fmt.Errorf("failed to scan change record: %w", err)
		}
		records = append(records, rec)
		return nil
	}, args...)
	if err != nil {
		return nil, database.NewError("list", "failed to list changes", err)
	}
	return records, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Stats returns connection and query statistics
func (s *Store) Stats() database.Stats {
	return s.db.Stats()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
