package source

import (
	"context"
	"net/netip"
	"time"
)

const (
	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 10 * time.Second
	// MinTimeout and MaxTimeout bound configured timeouts
	MinTimeout = time.Second
	MaxTimeout = 60 * time.Second
)

// Source wraps one IP discovery endpoint
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// Fetch performs one lookup. It never retries.
	Fetch(ctx context.Context) (netip.Addr, error)
}

// Config describes one HTTP source
type Config struct {
	Name    string        `mapstructure:"name" json:"name"`
	URL     string        `mapstructure:"url" json:"url" validate:"required,url"`
	JSONKey string        `mapstructure:"json_key" json:"json_key,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

// DefaultConfigs returns the built-in source list in failover order
func DefaultConfigs() []Config {
	return []Config{
		{Name: "ipify", URL: "https://api.ipify.org?format=json", JSONKey: "ip", Timeout: DefaultTimeout},
		{Name: "amazonaws", URL: "http://checkip.amazonaws.com/", Timeout: DefaultTimeout},
		{Name: "akamai", URL: "https://whatismyip.akamai.com/", Timeout: DefaultTimeout},
	}
}

// Static always returns the same address. It backs test mode.
type Static struct {
	name string
	addr netip.Addr
}

// NewStatic creates a fixed-address source
func NewStatic(name string, addr netip.Addr) *Static {
	if name == "" {
		name = "static"
	}
	return &Static{name: name, addr: addr}
}

// Name implements Source
func (s *Static) Name() string { return s.name }

// Fetch implements Source
func (s *Static) Fetch(ctx context.Context) (netip.Addr, error) {
	if err := ctx.Err(); err != nil {
		return netip.Addr{}, classifyTransport(s.name, err)
	}
	return s.addr, nil
}
