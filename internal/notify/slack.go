package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ipmonitor/internal/retry"

	"go.uber.org/zap"
)

// SlackNotifier represents Slack notifier
type SlackNotifier struct {
	config *SlackConfig
	retry  *retry.Config
	logger *zap.Logger
	client *http.Client
}

// SlackMessage represents Slack message
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	IconURL     string            `json:"icon_url,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents Slack attachment
type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

// SlackField represents Slack field
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackNotifier creates new SlackNotifier
func NewSlackNotifier(cfg *SlackConfig, retryCfg *retry.Config, logger *zap.Logger) (*SlackNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SlackNotifier{
		config: cfg,
		retry:  retryCfg,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}, nil
}

// Type implements Notifier
func (n *SlackNotifier) Type() ChannelType { return ChannelSlack }

// NotifyChange sends IP change notification
func (n *SlackNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return n.send(ctx, changeAttachment(change))
}

// NotifyStartup sends startup notification
func (n *SlackNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return n.send(ctx, startupAttachment(startup))
}

// NotifyDNSError sends DNS update failure notification
func (n *SlackNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return n.send(ctx, dnsErrorAttachment(failure))
}

// Close implements Notifier
func (n *SlackNotifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

// slackColor renders an embed color as a Slack hex string
func slackColor(color int) string {
	return fmt.Sprintf("#%06x", color)
}

// fromEmbed converts the shared embed layout into a Slack attachment
func fromEmbed(embed DiscordEmbed, ts time.Time) SlackAttachment {
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := make([]SlackField, 0, len(embed.Fields))
	for _, f := range embed.Fields {
		if f.Name == "Timestamp" {
			continue
		}
		fields = append(fields, SlackField{
			Title: f.Name,
			Value: strings.ReplaceAll(f.Value, "**", "*"),
			Short: f.Inline,
		})
	}
	return SlackAttachment{
		Color:     slackColor(embed.Color),
		Title:     embed.Title,
		Fields:    fields,
		Footer:    discordFooter,
		Timestamp: ts.Unix(),
	}
}

func changeAttachment(c *Change) SlackAttachment {
	return fromEmbed(changeEmbed(c), c.ObservedAt)
}

func startupAttachment(s *Startup) SlackAttachment {
	return fromEmbed(startupEmbed(s), s.StartedAt)
}

func dnsErrorAttachment(f *DNSFailure) SlackAttachment {
	return fromEmbed(dnsErrorEmbed(f), f.ObservedAt)
}

// send sends a slack message
func (n *SlackNotifier) send(ctx context.Context, attachment SlackAttachment) error {
	payload, err := json.Marshal(SlackMessage{
		Channel:     n.config.Channel,
		Username:    n.config.Username,
		IconEmoji:   n.config.IconEmoji,
		IconURL:     n.config.IconURL,
		Text:        attachment.Title,
		Attachments: []SlackAttachment{attachment},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	return retry.Execute(ctx, n.retry, n.logger, func(ctx context.Context) error {
		return n.post(ctx, payload)
	})
}

func (n *SlackNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.After(retryAfter(resp.Header), fmt.Errorf("slack rate limit exceeded"))
	case resp.StatusCode >= 500:
		return fmt.Errorf("slack api error: status code %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return retry.Permanent(fmt.Errorf("slack api error: status code %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body))))
	}
}
