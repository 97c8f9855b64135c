package dns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Provider names
const (
	ProviderHostinger  = "hostinger"
	ProviderCloudflare = "cloudflare"
)

// Updater points DNS records at a new address
type Updater interface {
	// UpdateRecord upserts every managed record. Failures for individual
	// records are joined; each one is a *Error.
	UpdateRecord(ctx context.Context, ip netip.Addr) error
	// Records returns the fully qualified names being managed
	Records() []string
	// Provider names the backing DNS API
	Provider() string
}

// Config represents DNS provider configuration
type Config struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=hostinger cloudflare"`
	Domain     string        `mapstructure:"domain" validate:"required,domain"`
	RecordName string        `mapstructure:"record_name" validate:"required,recordname"`
	APIKey     string        `mapstructure:"api_key" validate:"required"`
	APIURL     string        `mapstructure:"api_url" validate:"omitempty,url"`
	TTL        int           `mapstructure:"ttl" validate:"min=1,max=86400"`
	Proxied    bool          `mapstructure:"proxied"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Dokploy    DokployConfig `mapstructure:"dokploy"`
}

// DokployConfig adds a second record pointed at the same address
type DokployConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	RecordName string `mapstructure:"record_name" validate:"omitempty,recordname"`
}

// RecordNames returns the relative record names to manage
func (c *Config) RecordNames() []string {
	names := []string{c.RecordName}
	if c.Dokploy.Enabled && c.Dokploy.RecordName != "" {
		names = append(names, c.Dokploy.RecordName)
	}
	return lo.Uniq(names)
}

// FQDN joins a relative record name with its zone. "@" is the zone apex.
func FQDN(record, domain string) string {
	domain = strings.TrimSuffix(domain, ".")
	if record == "" || record == "@" {
		return domain
	}
	return record + "." + domain
}

// New creates the updater for cfg.Provider
func New(cfg Config, logger *zap.Logger) (Updater, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", ProviderHostinger:
		return NewHostingerUpdater(cfg, nil, logger)
	case ProviderCloudflare:
		return NewCloudflareUpdater(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported dns provider: %s", cfg.Provider)
	}
}

// Error describes a failed record update
type Error struct {
	Provider      string
	Record        string
	StatusCode    int
	Message       string
	CorrelationID string
	FieldErrors   map[string][]string
	Err           error
}

// Error implements error
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: update %s", e.Provider, e.Record)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	} else {
		b.WriteString(": connection failed")
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil && e.Message != e.Err.Error() {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the transport cause, if any
func (e *Error) Unwrap() error { return e.Err }

// SplitErrors flattens a joined update error into per-record errors.
// Errors that are not *Error are wrapped with only the message set.
func SplitErrors(err error) []*Error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		return []*Error{e}
	case interface{ Unwrap() []error }:
		var out []*Error
		for _, inner := range e.Unwrap() {
			out = append(out, SplitErrors(inner)...)
		}
		return out
	}

	var dnsErr *Error
	if errors.As(err, &dnsErr) {
		return []*Error{dnsErr}
	}
	return []*Error{{Message: err.Error(), Err: err}}
}

// updateAll runs update for each record and joins failures
func updateAll(ctx context.Context, logger *zap.Logger, records []string, ip netip.Addr, update func(context.Context, string, netip.Addr) error) error {
	var errs []error
	for _, record := range records {
		if err := update(ctx, record, ip); err != nil {
			logger.Error("DNS record update failed",
				zap.String("record", record),
				zap.String("ip", ip.String()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Info("DNS record updated",
			zap.String("record", record),
			zap.String("ip", ip.String()))
	}
	return errors.Join(errs...)
}
