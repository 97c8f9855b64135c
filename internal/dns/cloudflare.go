package dns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"ipmonitor/internal/types"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

const (
	cloudflareComment = "managed by ipmonitor"
	// cloudflareAutoTTL is Cloudflare's "automatic" TTL, required for proxied records
	cloudflareAutoTTL = 1
)

// cloudflareAPI is the subset of *cloudflare.API the updater uses
type cloudflareAPI interface {
	ZoneIDByName(zoneName string) (string, error)
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error)
}

// CloudflareUpdater upserts records through the Cloudflare API
type CloudflareUpdater struct {
	cfg     Config
	api     cloudflareAPI
	logger  *zap.Logger
	records []string

	mu     sync.Mutex
	zoneID string
}

// NewCloudflareUpdater creates a Cloudflare updater authenticated with an API token
func NewCloudflareUpdater(cfg Config, logger *zap.Logger) (*CloudflareUpdater, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cloudflare api token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := []cloudflare.Option{cloudflare.HTTPClient(&http.Client{Timeout: timeout})}
	if cfg.APIURL != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimSuffix(cfg.APIURL, "/")))
	}

	api, err := cloudflare.NewWithAPIToken(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudflare client: %w", err)
	}
	return newCloudflareUpdater(cfg, api, logger)
}

func newCloudflareUpdater(cfg Config, api cloudflareAPI, logger *zap.Logger) (*CloudflareUpdater, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("cloudflare domain is required")
	}
	if cfg.RecordName == "" {
		cfg.RecordName = "@"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudflareUpdater{
		cfg:     cfg,
		api:     api,
		logger:  logger.Named("cloudflare"),
		records: cfg.RecordNames(),
	}, nil
}

// Provider implements Updater
func (c *CloudflareUpdater) Provider() string { return ProviderCloudflare }

// Records implements Updater
func (c *CloudflareUpdater) Records() []string {
	out := make([]string, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, FQDN(r, c.cfg.Domain))
	}
	return out
}

// UpdateRecord implements Updater
func (c *CloudflareUpdater) UpdateRecord(ctx context.Context, ip netip.Addr) error {
	return updateAll(ctx, c.logger, c.records, ip, c.upsert)
}

func (c *CloudflareUpdater) zone() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.zoneID != "" {
		return c.zoneID, nil
	}
	id, err := c.api.ZoneIDByName(strings.TrimSuffix(c.cfg.Domain, "."))
	if err != nil {
		return "", err
	}
	c.zoneID = id
	return id, nil
}

func (c *CloudflareUpdater) upsert(ctx context.Context, record string, ip netip.Addr) error {
	fqdn := FQDN(record, c.cfg.Domain)

	zoneID, err := c.zone()
	if err != nil {
		return c.wrap(fqdn, "zone lookup failed", err)
	}
	rc := cloudflare.ZoneIdentifier(zoneID)
	recordType := types.RecordType(ip)
	ttl := c.cfg.TTL
	if c.cfg.Proxied {
		ttl = cloudflareAutoTTL
	}
	proxied := c.cfg.Proxied

	existing, _, err := c.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: fqdn,
	})
	if err != nil {
		return c.wrap(fqdn, "list records failed", err)
	}

	if len(existing) == 0 {
		_, err = c.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    recordType,
			Name:    fqdn,
			Content: ip.String(),
			TTL:     ttl,
			Proxied: &proxied,
			Comment: cloudflareComment,
		})
		if err != nil {
			return c.wrap(fqdn, "create record failed", err)
		}
		return nil
	}

	// Extra duplicates are left alone; only the first match is kept current
	if len(existing) > 1 {
		c.logger.Warn("Multiple records found, updating the first",
			zap.String("record", fqdn),
			zap.Int("count", len(existing)))
	}
	current := existing[0]
	if current.Content == ip.String() && current.Proxied != nil && *current.Proxied == proxied {
		c.logger.Debug("Record already up to date", zap.String("record", fqdn))
		return nil
	}

	_, err = c.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
		ID:      current.ID,
		Type:    recordType,
		Name:    fqdn,
		Content: ip.String(),
		TTL:     ttl,
		Proxied: &proxied,
	})
	if err != nil {
		return c.wrap(fqdn, "update record failed", err)
	}
	return nil
}

// wrap converts a cloudflare-go error into an *Error
func (c *CloudflareUpdater) wrap(fqdn, msg string, err error) *Error {
	out := &Error{Provider: ProviderCloudflare, Record: fqdn, Message: msg, Err: err}

	var apiErr *cloudflare.Error
	if errors.As(err, &apiErr) {
		out.StatusCode = apiErr.StatusCode
		out.CorrelationID = apiErr.RayID
		if len(apiErr.ErrorMessages) > 0 {
			out.Message = strings.Join(apiErr.ErrorMessages, "; ")
		}
	}
	return out
}
