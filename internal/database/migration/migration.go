package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql
var migrationsFS embed.FS

// Migrator handles database migrations
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// NewMigrator creates a migrator that takes ownership of db. driver is one
// of sqlite, mysql, postgres or pgx; pgx shares the postgres migrations.
func NewMigrator(db *sql.DB, driver string, logger *zap.Logger) (*Migrator, error) {
	var (
		dbDriver database.Driver
		dbName   string
		dir      string
		err      error
	)

	switch driver {
	case "sqlite":
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		dbName, dir = "sqlite3", "sqlite"
	case "mysql":
		dbDriver, err = mysql.WithInstance(db, &mysql.Config{})
		dbName, dir = "mysql", "mysql"
	case "postgres":
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
		dbName, dir = "postgres", "postgres"
	case "pgx":
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		dbName, dir = "pgx5", "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver: %w", driver, err)
	}

	src, err := iofs.New(migrationsFS, "sql/"+dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", src, dbName, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator instance: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{migrate: instance, logger: logger.Named("migration")}, nil
}

// Up applies pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("Starting migrations...")
	err := m.run(ctx, func() error {
		if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("Migration failed", zap.Error(err))
		return err
	}
	m.logger.Info("Migrations completed successfully")
	return nil
}

// Rollback rolls back the last steps migrations
func (m *Migrator) Rollback(ctx context.Context, steps int) error {
	return m.run(ctx, func() error {
		if err := m.migrate.Steps(-steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		return nil
	})
}

// run executes fn, abandoning the wait when ctx ends. golang-migrate
// observes GracefulStop between migrations.
func (m *Migrator) run(ctx context.Context, fn func() error) error {
	errChan := make(chan error, 1)
	go func() { errChan <- fn() }()

	select {
	case <-ctx.Done():
		select {
		case m.migrate.GracefulStop <- true:
		default:
		}
		return fmt.Errorf("migration cancelled: %w", ctx.Err())
	case err := <-errChan:
		return err
	}
}

// Version returns the current migration version
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migration source and the database driver, which
// closes the *sql.DB passed to NewMigrator.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr == nil && dbErr == nil {
		return nil
	}
	return fmt.Errorf("failed to close migrator: %w", errors.Join(sourceErr, dbErr))
}
