package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ipmonitor/internal/database/migration"

	"go.uber.org/zap"
)

// DB wraps a *sql.DB with query timeouts, metrics and retention pruning
type DB struct {
	db      *sql.DB
	driver  string
	logger  *zap.Logger
	cfg     Config
	metrics metrics

	pruneCancel context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// metrics represents database metrics
type metrics struct {
	queryCount  atomic.Int64
	queryErrors atomic.Int64
	slowQueries atomic.Int64
	queryTime   atomic.Int64
}

// Open opens the configured database, applies driver session settings and
// pings it.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("database driver is not configured")
	}
	cfg.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		d   *DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		d, err = openSQLite(cfg, logger)
	case DriverMySQL:
		d, err = openMySQL(cfg, logger)
	case DriverPostgres:
		d, err = openPostgres(cfg, logger)
	case DriverPgx:
		d, err = openPgx(cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := d.Ping(pingCtx); err != nil {
		_ = d.db.Close()
		return nil, NewError("open", "ping failed", err)
	}

	logger.Info("Database connected", zap.String("driver", cfg.Driver))
	return d, nil
}

// newDB creates a DB around an open sql handle
func newDB(sqlDriver, dsn string, cfg Config, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		db:     db,
		driver: cfg.Driver,
		logger: logger.Named("database"),
		cfg:    cfg,
	}, nil
}

// withTimeout adds the query timeout if ctx has no deadline
func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.QueryTimeout)
}

// ExecContext executes query and returns result
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := d.db.ExecContext(ctx, d.Rebind(query), args...)
	d.recordMetrics(start, err)
	return result, err
}

// QueryContext executes query and passes the rows to fn
func (d *DB) QueryContext(ctx context.Context, query string, fn func(*sql.Rows) error, args ...any) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, d.Rebind(query), args...)
	d.recordMetrics(start, err)
	if err != nil {
		return err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// WithTransaction executes fn in a transaction
func (d *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				d.logger.Error("Transaction rollback failed during panic", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Rebind converts ? placeholders to $N for the postgres drivers
func (d *DB) Rebind(query string) string {
	if d.driver != DriverPostgres && d.driver != DriverPgx {
		return query
	}
	return ConvertPlaceholders(query)
}

// ConvertPlaceholders rewrites ? placeholders as $1, $2, ...
func ConvertPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping pings the database
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver returns the configured driver name
func (d *DB) Driver() string {
	return d.driver
}

// Unwrap returns the underlying database connection
func (d *DB) Unwrap() *sql.DB {
	return d.db
}

// Stats returns database statistics
func (d *DB) Stats() Stats {
	dbStats := d.db.Stats()
	count := d.metrics.queryCount.Load()
	var avg time.Duration
	if count > 0 {
		avg = time.Duration(d.metrics.queryTime.Load() / count)
	}
	return Stats{
		OpenConnections: dbStats.OpenConnections,
		InUse:           dbStats.InUse,
		Idle:            dbStats.Idle,
		WaitCount:       dbStats.WaitCount,
		QueryCount:      count,
		QueryErrors:     d.metrics.queryErrors.Load(),
		SlowQueries:     d.metrics.slowQueries.Load(),
		AvgQueryTime:    avg,
	}
}

// Cleanup deletes rows of table whose column is older than before
func (d *DB) Cleanup(ctx context.Context, table, column string, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", table, column)
	result, err := d.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, NewError("cleanup", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, NewError("cleanup", "rows affected", err)
	}
	return affected, nil
}

// StartPruning periodically removes rows older than the retention period.
// It is a no-op without a retention period.
func (d *DB) StartPruning(table, column string) {
	if d.cfg.Retention <= 0 || d.pruneCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.pruneCancel = cancel
	d.wg.Add(1)
	go d.pruneLoop(ctx, table, column)
}

// pruneLoop handles periodic data pruning
func (d *DB) pruneLoop(ctx context.Context, table, column string) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := time.Now().Add(-d.cfg.Retention)
			deleted, err := d.Cleanup(ctx, table, column, before)
			if err != nil {
				d.logger.Error("Failed to prune old data",
					zap.Error(err),
					zap.Time("before", before))
				continue
			}
			if deleted > 0 {
				d.logger.Info("Pruned old data",
					zap.String("table", table),
					zap.Int64("deleted", deleted))
			}
		}
	}
}

// Close stops pruning and closes the database connection
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.pruneCancel != nil {
			d.pruneCancel()
		}
		d.wg.Wait()
		if cerr := d.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	})
	return err
}

// recordMetrics records operation metrics
func (d *DB) recordMetrics(start time.Time, err error) {
	duration := time.Since(start)

	d.metrics.queryCount.Add(1)
	d.metrics.queryTime.Add(int64(duration))

	if err != nil {
		d.metrics.queryErrors.Add(1)
	}

	if duration > d.cfg.SlowQueryThreshold {
		d.metrics.slowQueries.Add(1)
		d.logger.Warn("Slow query detected", zap.Duration("duration", duration))
	}
}

// Migrate applies the embedded schema migrations over a dedicated
// connection.
func Migrate(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection for migrations: %w", err)
	}

	migrator, err := migration.NewMigrator(d.Unwrap(), cfg.Driver, logger)
	if err != nil {
		_ = d.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error("Failed to close migrator", zap.Error(err))
		}
	}()

	return migrator.Up(ctx)
}
