package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"ipmonitor/internal/types"
	"ipmonitor/internal/version"
)

// maxBodySize caps how much of a response is read
const maxBodySize = 512

// defaultJSONKey is used when a JSON body arrives without a configured key
const defaultJSONKey = "ip"

// HTTPSource fetches the public IP from a web endpoint
type HTTPSource struct {
	name    string
	url     string
	jsonKey string
	timeout time.Duration
	version types.IPVersion
	client  *http.Client
}

// NewHTTPSource creates an HTTP source from cfg
func NewHTTPSource(cfg Config, ipVersion types.IPVersion, client *http.Client) (*HTTPSource, error) {
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("source url %q must use http or https", cfg.URL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("source url %q has no host", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < MinTimeout || timeout > MaxTimeout {
		return nil, fmt.Errorf("source %q timeout %s out of range [%s, %s]", cfg.URL, timeout, MinTimeout, MaxTimeout)
	}

	name := cfg.Name
	if name == "" {
		name = u.Host
	}
	if client == nil {
		client = NewClient()
	}
	if !ipVersion.Valid() {
		ipVersion = types.IPVersionV4
	}

	return &HTTPSource{
		name:    name,
		url:     cfg.URL,
		jsonKey: cfg.JSONKey,
		timeout: timeout,
		version: ipVersion,
		client:  client,
	}, nil
}

// NewClient returns the shared client used by HTTP sources. Per-request
// timeouts come from each source's context.
func NewClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// Name implements Source
func (s *HTTPSource) Name() string { return s.name }

// URL returns the endpoint
func (s *HTTPSource) URL() string { return s.url }

// Fetch implements Source
func (s *HTTPSource) Fetch(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return netip.Addr{}, newError(s.name, ErrNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/plain, application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return netip.Addr{}, classifyTransport(s.name, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, newError(s.name, ErrInvalidResponse, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, classifyTransport(s.name, fmt.Errorf("failed to read response: %w", err))
	}

	raw, err := s.extract(body)
	if err != nil {
		return netip.Addr{}, newError(s.name, ErrInvalidResponse, err)
	}

	addr, err := types.ParseIP(raw, s.version)
	if err != nil {
		return netip.Addr{}, newError(s.name, ErrInvalidResponse, err)
	}
	return addr, nil
}

// extract pulls the address text out of a response body
func (s *HTTPSource) extract(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty body")
	}

	key := s.jsonKey
	if key == "" && trimmed[0] == '{' {
		key = defaultJSONKey
	}
	if key != "" {
		var doc map[string]any
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return "", fmt.Errorf("failed to decode json: %w", err)
		}
		value, ok := doc[key].(string)
		if !ok {
			return "", fmt.Errorf("json key %q missing or not a string", key)
		}
		return value, nil
	}

	line, _, _ := bufio.NewReader(bytes.NewReader(trimmed)).ReadLine()
	return string(line), nil
}
