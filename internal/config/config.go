package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ipmonitor/internal/api"
	"ipmonitor/internal/database"
	"ipmonitor/internal/dns"
	"ipmonitor/internal/notify"
	"ipmonitor/internal/source"
	"ipmonitor/internal/state"
	"ipmonitor/internal/types"
	"ipmonitor/internal/validator"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// State backends
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// DefaultTestIP is reported by the static source in test mode
const DefaultTestIP = "192.168.1.100"

// Config represents monitor configuration
type Config struct {
	CheckInterval int             `mapstructure:"check_interval" validate:"min=1"` // seconds
	IPVersion     types.IPVersion `mapstructure:"ip_version" validate:"oneof=ipv4 ipv6 any"`
	Sources       []source.Config `mapstructure:"sources" validate:"dive"`
	SourceURLs    string          `mapstructure:"source_urls"` // comma-separated, overrides Sources
	TestMode      bool            `mapstructure:"test_mode"`
	TestIP        string          `mapstructure:"test_ip"`

	State   StateConfig     `mapstructure:"state"`
	DNS     dns.Config      `mapstructure:"dns"`
	Notify  notify.Config   `mapstructure:"notify"`
	History database.Config `mapstructure:"history"`
	API     api.Config      `mapstructure:"api"`
	Log     LogConfig       `mapstructure:"log"`
}

// StateConfig selects where the last observed IP is kept
type StateConfig struct {
	Backend string            `mapstructure:"backend" validate:"oneof=file redis"`
	File    string            `mapstructure:"file"`
	Redis   state.RedisConfig `mapstructure:"redis"`
}

// Interval returns the check interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// Load reads configuration from the environment, the YAML file at path when
// given, and defaults, in that order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(InDot)
		v.AddConfigPath(InHome)
		v.AddConfigPath(InEtc)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// normalize applies values that depend on other settings
func (c *Config) normalize() {
	if urls := splitList(c.SourceURLs); len(urls) > 0 {
		c.Sources = lo.Map(urls, func(u string, _ int) source.Config {
			return source.Config{URL: u, Timeout: source.DefaultTimeout}
		})
	}
	if len(c.Sources) == 0 {
		c.Sources = source.DefaultConfigs()
	}

	c.IPVersion = types.IPVersion(strings.ToLower(string(c.IPVersion)))
	c.DNS.Provider = strings.ToLower(strings.TrimSpace(c.DNS.Provider))
	c.DNS.Domain = strings.TrimSuffix(strings.TrimSpace(c.DNS.Domain), ".")
	c.Notify.Kafka.Brokers = lo.Compact(lo.Map(c.Notify.Kafka.Brokers, func(b string, _ int) string {
		return strings.TrimSpace(b)
	}))

	if c.History.Enabled() {
		c.History.SetDefaults()
	}
	c.Log = *c.Log.SetDefaults()
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []error

	if c.TestMode {
		if _, err := types.ParseIP(c.TestIP, c.IPVersion); err != nil {
			errs = append(errs, fmt.Errorf("test_ip: %w", err))
		}
	} else if len(c.Sources) == 0 {
		errs = append(errs, types.ErrNoSources)
	}

	if c.State.Backend == BackendRedis && c.State.Redis.Addr == "" {
		errs = append(errs, errors.New("state.redis.addr is required for the redis backend"))
	}
	if c.State.Backend == BackendFile && c.State.File == "" {
		errs = append(errs, errors.New("state.file is required for the file backend"))
	}

	if c.Notify.RateLimit.MaxEvents > 0 && c.Notify.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("notify.rate_limit.interval must be positive when max_events is set"))
	}
	if c.Notify.Retry.Enable && c.Notify.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("notify.retry.max_attempts must be at least 1"))
	}

	if c.History.Enabled() {
		if err := c.History.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}

	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// splitList splits a comma-separated value, dropping blanks
func splitList(value string) []string {
	return lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
