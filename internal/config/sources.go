package config

import (
	"fmt"
	"net/http"

	"ipmonitor/internal/source"
	"ipmonitor/internal/types"
)

// BuildSources returns the configured sources in failover order. Test mode
// replaces them with a single static source reporting TestIP.
func (c *Config) BuildSources(client *http.Client) ([]source.Source, error) {
	if c.TestMode {
		addr, err := types.ParseIP(c.TestIP, c.IPVersion)
		if err != nil {
			return nil, fmt.Errorf("test_ip: %w", err)
		}
		return []source.Source{source.NewStatic("test", addr)}, nil
	}

	if client == nil {
		client = source.NewClient()
	}

	sources := make([]source.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		src, err := source.NewHTTPSource(sc, c.IPVersion, client)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, types.ErrNoSources
	}
	return sources, nil
}
