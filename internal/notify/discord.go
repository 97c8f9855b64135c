package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/retry"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Embed colors
const (
	ColorChange      = 0x00ff00
	ColorStartup     = 0x0099ff
	ColorStartupTest = 0xffaa00
	ColorError       = 0xff0000
	ColorValidation  = 0xff9900
)

const (
	discordFooter       = "IP Monitor"
	discordFieldLimit   = 1024
	discordTimeLayout   = "2006-01-02 15:04:05"
	defaultRetryAfter   = time.Second
	connectionFailedMsg = "Connection failed"
)

var titleCaser = cases.Title(language.English)

// DiscordNotifier represents Discord notifier
type DiscordNotifier struct {
	config *DiscordConfig
	retry  *retry.Config
	logger *zap.Logger
	client *http.Client
}

// DiscordMessage represents Discord message
type DiscordMessage struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents Discord embed
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields"`
	Footer      DiscordFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// DiscordFooter represents Discord embed footer
type DiscordFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// DiscordField represents Discord field
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// NewDiscordNotifier creates new Discord notifier
func NewDiscordNotifier(cfg *DiscordConfig, retryCfg *retry.Config, logger *zap.Logger) (*DiscordNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("discord webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DiscordNotifier{
		config: cfg,
		retry:  retryCfg,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				MaxIdleConnsPerHost: 5,
			},
		},
	}, nil
}

// Type implements Notifier
func (n *DiscordNotifier) Type() ChannelType { return ChannelDiscord }

// NotifyChange sends IP change notification
func (n *DiscordNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return n.send(ctx, changeEmbed(change))
}

// NotifyStartup sends startup notification
func (n *DiscordNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return n.send(ctx, startupEmbed(startup))
}

// NotifyDNSError sends DNS update failure notification
func (n *DiscordNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return n.send(ctx, dnsErrorEmbed(failure))
}

// Close implements Notifier
func (n *DiscordNotifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

func changeEmbed(c *Change) DiscordEmbed {
	previous := "N/A"
	if c.HasPrevious() {
		previous = c.Previous.String()
	}

	fields := []DiscordField{
		{Name: "Previous IP", Value: previous, Inline: true},
		{Name: "New IP", Value: c.Current.String(), Inline: true},
	}
	if len(c.Records) > 0 {
		fields = append(fields, DiscordField{Name: "Domain", Value: c.Records[0], Inline: false})
		for _, extra := range c.Records[1:] {
			fields = append(fields, DiscordField{Name: "Additional Record", Value: extra, Inline: false})
		}
	}
	fields = append(fields, timestampField(c.ObservedAt))

	title := "IP Address Changed"
	if !c.HasPrevious() {
		title = "IP Address Detected"
	}
	return newEmbed(title, ColorChange, c.ObservedAt, fields)
}

func startupEmbed(s *Startup) DiscordEmbed {
	title, color := "IP Monitor Started", ColorStartup
	if s.TestMode {
		title, color = "IP Monitor Started (Test Mode)", ColorStartupTest
	}

	fields := []DiscordField{
		{Name: "Current IP", Value: s.IP.String(), Inline: true},
		{Name: "Check Interval", Value: s.CheckInterval.String(), Inline: true},
	}
	if s.TestMode {
		fields = append(fields, DiscordField{Name: "Test Mode", Value: fmt.Sprintf("Active (IP: %s)", s.IP), Inline: false})
	}
	if len(s.Records) > 0 {
		fields = append(fields, DiscordField{Name: "Records", Value: strings.Join(s.Records, "\n"), Inline: false})
	}
	fields = append(fields, timestampField(s.StartedAt))
	return newEmbed(title, color, s.StartedAt, fields)
}

// dnsErrorStyle picks the title and color for a provider status code
func dnsErrorStyle(provider string, status int) (string, int) {
	name := titleCaser.String(provider)
	if name == "" {
		name = "DNS"
	}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Sprintf("Authentication Error in %s", name), ColorError
	case http.StatusUnprocessableEntity:
		return fmt.Sprintf("Validation Error in %s", name), ColorValidation
	case http.StatusInternalServerError:
		return fmt.Sprintf("Server Error in %s", name), ColorError
	default:
		return fmt.Sprintf("%s API Error", name), ColorError
	}
}

func dnsErrorEmbed(f *DNSFailure) DiscordEmbed {
	e := f.Error
	if e == nil {
		e = &dns.Error{}
	}
	title, color := dnsErrorStyle(e.Provider, e.StatusCode)

	status := connectionFailedMsg
	if e.StatusCode != 0 {
		status = strconv.Itoa(e.StatusCode)
	}
	message := e.Message
	if message == "" {
		message = "unknown error"
	}

	fields := []DiscordField{
		{Name: "Attempted IP", Value: f.IP.String(), Inline: true},
		{Name: "Record", Value: orNA(e.Record), Inline: true},
		{Name: "Status Code", Value: status, Inline: true},
		{Name: "Error Message", Value: truncate(message, discordFieldLimit), Inline: false},
	}
	if e.CorrelationID != "" {
		fields = append(fields, DiscordField{Name: "Correlation ID", Value: e.CorrelationID, Inline: true})
	}
	if details := formatFieldErrors(e.FieldErrors); details != "" {
		fields = append(fields, DiscordField{Name: "Error Details", Value: truncate(details, discordFieldLimit), Inline: false})
	}
	fields = append(fields, timestampField(f.ObservedAt))
	return newEmbed(title, color, f.ObservedAt, fields)
}

// formatFieldErrors renders validation errors as a bulleted list
func formatFieldErrors(errs map[string][]string) string {
	if len(errs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, field := range keys {
		lines = append(lines, fmt.Sprintf("**%s:**", field))
		for _, msg := range errs[field] {
			lines = append(lines, "  • "+msg)
		}
	}
	return strings.Join(lines, "\n")
}

func newEmbed(title string, color int, ts time.Time, fields []DiscordField) DiscordEmbed {
	if ts.IsZero() {
		ts = time.Now()
	}
	return DiscordEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Footer:    DiscordFooter{Text: discordFooter},
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

func timestampField(ts time.Time) DiscordField {
	if ts.IsZero() {
		ts = time.Now()
	}
	return DiscordField{Name: "Timestamp", Value: ts.Format(discordTimeLayout), Inline: false}
}

// send sends Discord message
func (n *DiscordNotifier) send(ctx context.Context, embed DiscordEmbed) error {
	payload, err := json.Marshal(DiscordMessage{
		Username:  n.config.Username,
		AvatarURL: n.config.AvatarURL,
		Embeds:    []DiscordEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return retry.Execute(ctx, n.retry, n.logger, func(ctx context.Context) error {
		return n.post(ctx, payload)
	})
}

func (n *DiscordNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.After(retryAfter(resp.Header), fmt.Errorf("discord rate limit exceeded"))
	case resp.StatusCode >= 500:
		return fmt.Errorf("discord api error: status code %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("discord api error: status code %d", resp.StatusCode))
	}
}

// retryAfter reads a Retry-After header in seconds
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds * float64(time.Second))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
