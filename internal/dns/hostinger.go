package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"ipmonitor/internal/types"
	"ipmonitor/internal/version"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// DefaultHostingerURL is the Hostinger developer API base
	DefaultHostingerURL = "https://developers.hostinger.com"
	// DefaultTTL is applied when no TTL is configured
	DefaultTTL = 300
	// DefaultTimeout bounds a single provider request
	DefaultTimeout = 30 * time.Second
)

// HostingerUpdater updates records through the Hostinger DNS zone API
type HostingerUpdater struct {
	cfg     Config
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	records []string
}

type hostingerZoneRequest struct {
	Overwrite bool                  `json:"overwrite"`
	Zone      []hostingerZoneRecord `json:"zone"`
}

type hostingerZoneRecord struct {
	Name    string             `json:"name"`
	Records []hostingerContent `json:"records"`
	TTL     int                `json:"ttl"`
	Type    string             `json:"type"`
}

type hostingerContent struct {
	Content string `json:"content"`
}

type hostingerError struct {
	Message       string          `json:"message"`
	CorrelationID string          `json:"correlation_id"`
	Errors        json.RawMessage `json:"errors"`
}

// NewHostingerUpdater creates a Hostinger updater. A nil client gets a
// client with the provider timeout.
func NewHostingerUpdater(cfg Config, client *http.Client, logger *zap.Logger) (*HostingerUpdater, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("hostinger domain is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("hostinger api key is required")
	}
	if cfg.RecordName == "" {
		cfg.RecordName = "@"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	baseURL := strings.TrimSuffix(lo.Ternary(cfg.APIURL != "", cfg.APIURL, DefaultHostingerURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid hostinger api url: %w", err)
	}

	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HostingerUpdater{
		cfg:     cfg,
		baseURL: baseURL,
		client:  client,
		logger:  logger.Named("hostinger"),
		records: cfg.RecordNames(),
	}, nil
}

// Provider implements Updater
func (h *HostingerUpdater) Provider() string { return ProviderHostinger }

// Records implements Updater
func (h *HostingerUpdater) Records() []string {
	return lo.Map(h.records, func(r string, _ int) string { return FQDN(r, h.cfg.Domain) })
}

// UpdateRecord implements Updater. Each record is a separate zone update
// so failures can be attributed.
func (h *HostingerUpdater) UpdateRecord(ctx context.Context, ip netip.Addr) error {
	return updateAll(ctx, h.logger, h.records, ip, h.updateOne)
}

func (h *HostingerUpdater) updateOne(ctx context.Context, record string, ip netip.Addr) error {
	fqdn := FQDN(record, h.cfg.Domain)
	fail := func(status int, msg string, err error) *Error {
		return &Error{Provider: ProviderHostinger, Record: fqdn, StatusCode: status, Message: msg, Err: err}
	}

	payload := hostingerZoneRequest{
		Overwrite: true,
		Zone: []hostingerZoneRecord{{
			Name:    record,
			Records: []hostingerContent{{Content: ip.String()}},
			TTL:     h.cfg.TTL,
			Type:    types.RecordType(ip),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fail(0, "failed to marshal request", err)
	}

	endpoint := fmt.Sprintf("%s/api/dns/v1/zones/%s", h.baseURL, url.PathEscape(h.cfg.Domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := h.client.Do(req)
	if err != nil {
		return fail(0, err.Error(), err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			h.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}

	return h.parseError(resp, fqdn)
}

// parseError builds an *Error from a non-200 response
func (h *HostingerUpdater) parseError(resp *http.Response, fqdn string) *Error {
	out := &Error{
		Provider:   ProviderHostinger,
		Record:     fqdn,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return out
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return out
	}

	var apiErr hostingerError
	if err := json.Unmarshal(data, &apiErr); err != nil {
		h.logger.Debug("Failed to decode error body", zap.Error(err))
		return out
	}
	if apiErr.Message != "" {
		out.Message = apiErr.Message
	}
	out.CorrelationID = apiErr.CorrelationID
	out.FieldErrors = decodeFieldErrors(apiErr.Errors)
	return out
}

// decodeFieldErrors accepts both {"field": ["msg"]} and {"field": "msg"}
func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}

	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err == nil {
		return lo.Ternary(len(lists) > 0, lists, nil)
	}

	var single map[string]string
	if err := json.Unmarshal(raw, &single); err == nil && len(single) > 0 {
		return lo.MapValues(single, func(v string, _ string) []string { return []string{v} })
	}
	return nil
}
