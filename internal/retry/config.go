package retry

import (
	"encoding/json"
	"errors"
	"time"
)

// Config defines the configuration for the retry mechanism.
type Config struct {
	Enable      bool          `mapstructure:"enable" json:"enable"`             // Enable retry
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"` // Total attempts including the first
	Interval    time.Duration `mapstructure:"interval" json:"interval"`         // Delay before the second attempt
	MaxInterval time.Duration `mapstructure:"max_interval" json:"max_interval"` // Upper bound for a single delay
	Multiplier  float64       `mapstructure:"multiplier" json:"multiplier"`     // Backoff growth factor
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *Config {
	return &Config{
		Enable:      true,
		MaxAttempts: 3,
		Interval:    time.Second,
		MaxInterval: 10 * time.Second,
		Multiplier:  2,
	}
}

// Validate validates the retry configuration.
func (cfg *Config) Validate() error {
	if cfg == nil || !cfg.Enable {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		return errors.New("max_attempts must be greater than zero")
	}
	if cfg.Interval < 0 || cfg.MaxInterval < 0 {
		return errors.New("intervals cannot be negative")
	}
	if cfg.MaxInterval > 0 && cfg.Interval > cfg.MaxInterval {
		return errors.New("max_interval must be greater than interval")
	}
	if cfg.Multiplier != 0 && cfg.Multiplier < 1 {
		return errors.New("multiplier must be at least 1")
	}
	return nil
}

// String returns a JSON string representation of the Config.
func (cfg *Config) String() string {
	data, _ := json.Marshal(cfg)
	return string(data)
}
