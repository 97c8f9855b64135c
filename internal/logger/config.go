package logger

import "fmt"

// Config represents logging configuration
type Config struct {
	File       string `mapstructure:"file"`     // Rotated JSON log file, empty for console only
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Level:      "info",
		Format:     "console",
	}
}

// SetDefaults returns a copy of cfg with zero values filled in
func (cfg *Config) SetDefaults() *Config {
	out := *cfg
	def := DefaultConfig()
	if out.MaxSize == 0 {
		out.MaxSize = def.MaxSize
	}
	if out.MaxBackups == 0 {
		out.MaxBackups = def.MaxBackups
	}
	if out.MaxAge == 0 {
		out.MaxAge = def.MaxAge
	}
	if out.Level == "" {
		out.Level = def.Level
	}
	if out.Format == "" {
		out.Format = def.Format
	}
	return &out
}

// Validate validates logging configuration
func (cfg *Config) Validate() error {
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive")
	}
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	switch cfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}
	return nil
}
