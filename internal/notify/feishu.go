package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ipmonitor/internal/retry"

	"go.uber.org/zap"
)

// FeishuNotifier represents Feishu notifier
type FeishuNotifier struct {
	config *FeishuConfig
	retry  *retry.Config
	logger *zap.Logger
	client *http.Client
	now    func() time.Time
}

// FeishuMessage represents a Feishu interactive card message
type FeishuMessage struct {
	Timestamp string     `json:"timestamp,omitempty"`
	Sign      string     `json:"sign,omitempty"`
	MsgType   string     `json:"msg_type"`
	Card      FeishuCard `json:"card"`
}

// FeishuCard represents card content
type FeishuCard struct {
	Header   FeishuHeader    `json:"header"`
	Elements []FeishuElement `json:"elements"`
}

// FeishuHeader represents card header
type FeishuHeader struct {
	Title    FeishuText `json:"title"`
	Template string     `json:"template"`
}

// FeishuElement represents a card element
type FeishuElement struct {
	Tag  string     `json:"tag"`
	Text FeishuText `json:"text"`
}

// FeishuText represents card text
type FeishuText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// NewFeishuNotifier creates new Feishu notifier
func NewFeishuNotifier(cfg *FeishuConfig, retryCfg *retry.Config, logger *zap.Logger) (*FeishuNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("feishu webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &FeishuNotifier{
		config: cfg,
		retry:  retryCfg,
		logger: logger,
		now:    time.Now,
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
func (f *FeishuNotifier) Type() ChannelType { return ChannelFeishu }

// NotifyChange sends IP change notification
func (f *FeishuNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return f.send(ctx, changeEmbed(change))
}

// NotifyStartup sends startup notification
func (f *FeishuNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return f.send(ctx, startupEmbed(startup))
}

// NotifyDNSError sends DNS update failure notification
func (f *FeishuNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return f.send(ctx, dnsErrorEmbed(failure))
}

// Close implements Notifier
func (f *FeishuNotifier) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// feishuTemplate maps an embed color to a card header template
func feishuTemplate(color int) string {
	switch color {
	case ColorChange:
		return "green"
	case ColorStartup:
		return "blue"
	case ColorStartupTest, ColorValidation:
		return "orange"
	default:
		return "red"
	}
}

// feishuCard converts the shared embed layout into a card
func feishuCard(embed DiscordEmbed) FeishuCard {
	body := strings.TrimSpace(strings.TrimPrefix(markdownText(embed), "### "+embed.Title))
	return FeishuCard{
		Header: FeishuHeader{
			Title:    FeishuText{Tag: "plain_text", Content: embed.Title},
			Template: feishuTemplate(embed.Color),
		},
		Elements: []FeishuElement{
			{Tag: "div", Text: FeishuText{Tag: "lark_md", Content: body}},
		},
	}
}

// send sends message to Feishu
func (f *FeishuNotifier) send(ctx context.Context, embed DiscordEmbed) error {
	card := feishuCard(embed)
	return retry.Execute(ctx, f.retry, f.logger, func(ctx context.Context) error {
		msg := FeishuMessage{MsgType: "interactive", Card: card}
		if f.config.Secret != "" {
			timestamp := f.now().Unix()
			msg.Timestamp = strconv.FormatInt(timestamp, 10)
			msg.Sign = f.generateSignature(timestamp)
		}
		return f.post(ctx, msg)
	})
}

func (f *FeishuNotifier) post(ctx context.Context, msg FeishuMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			f.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.After(retryAfter(resp.Header), fmt.Errorf("feishu rate limit exceeded"))
	case resp.StatusCode >= 500:
		return fmt.Errorf("feishu api error: status code %d", resp.StatusCode)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if result.Code != 0 {
		return retry.Permanent(fmt.Errorf("feishu api error %d: %s", result.Code, result.Msg))
	}
	return nil
}

// generateSignature signs timestamp and secret as the key over an empty message
func (f *FeishuNotifier) generateSignature(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, f.config.Secret)
	hmac256 := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(hmac256.Sum(nil))
}
