package database

import (
	"fmt"
	"time"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Config defines database configuration
type Config struct {
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=sqlite mysql postgres pgx"`
	DSN    string `mapstructure:"dsn" validate:"required_with=Driver"`

	// Connection settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// Query settings
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`

	// Data pruning settings
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Enabled reports whether a driver is configured
func (c *Config) Enabled() bool {
	return c.Driver != ""
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = time.Second
	}
	if c.Retention > 0 && c.PruneInterval <= 0 {
		c.PruneInterval = time.Hour
	}
}

// Validate validates the database configuration
func (c *Config) Validate() error {
	switch c.Driver {
	case "":
		return nil
	case DriverSQLite, DriverMySQL, DriverPostgres, DriverPgx:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %s", c.Driver)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention cannot be negative")
	}
	return nil
}

// Stats represents database statistics
type Stats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	QueryCount      int64         `json:"query_count"`
	QueryErrors     int64         `json:"query_errors"`
	SlowQueries     int64         `json:"slow_queries"`
	AvgQueryTime    time.Duration `json:"avg_query_time"`
}
