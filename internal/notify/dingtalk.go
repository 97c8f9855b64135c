package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ipmonitor/internal/retry"

	"go.uber.org/zap"
)

// DefaultDingTalkURL is the robot send endpoint
const DefaultDingTalkURL = "https://oapi.dingtalk.com/robot/send"

// DingTalkNotifier represents DingTalk notifier
type DingTalkNotifier struct {
	config  *DingTalkConfig
	retry   *retry.Config
	logger  *zap.Logger
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// DingMessage represents DingTalk message
type DingMessage struct {
	MsgType  string       `json:"msgtype"`
	Markdown DingMarkdown `json:"markdown"`
	At       DingAt       `json:"at"`
}

// DingMarkdown represents DingTalk markdown
type DingMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DingAt represents DingTalk at
type DingAt struct {
	AtMobiles []string `json:"atMobiles,omitempty"`
	IsAtAll   bool     `json:"isAtAll"`
}

// NewDingTalkNotifier creates a new DingTalk notifier
func NewDingTalkNotifier(cfg *DingTalkConfig, retryCfg *retry.Config, logger *zap.Logger) (*DingTalkNotifier, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("dingtalk access token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = DefaultDingTalkURL
	}

	return &DingTalkNotifier{
		config:  cfg,
		retry:   retryCfg,
		logger:  logger,
		baseURL: baseURL,
		now:     time.Now,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Type implements Notifier
func (d *DingTalkNotifier) Type() ChannelType { return ChannelDingTalk }

// NotifyChange sends IP change notification
func (d *DingTalkNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return d.send(ctx, changeEmbed(change))
}

// NotifyStartup sends startup notification
func (d *DingTalkNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return d.send(ctx, startupEmbed(startup))
}

// NotifyDNSError sends DNS update failure notification
func (d *DingTalkNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return d.send(ctx, dnsErrorEmbed(failure))
}

// Close implements Notifier
func (d *DingTalkNotifier) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// markdownText renders an embed as a markdown list
func markdownText(embed DiscordEmbed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", embed.Title)
	for _, f := range embed.Fields {
		if strings.Contains(f.Value, "\n") {
			fmt.Fprintf(&b, "\n**%s:**\n\n%s\n", f.Name, f.Value)
			continue
		}
		fmt.Fprintf(&b, "\n- **%s:** %s", f.Name, f.Value)
	}
	return b.String()
}

// send sends DingTalk message
func (d *DingTalkNotifier) send(ctx context.Context, embed DiscordEmbed) error {
	payload, err := json.Marshal(DingMessage{
		MsgType: "markdown",
		Markdown: DingMarkdown{
			Title: embed.Title,
			Text:  markdownText(embed),
		},
		At: DingAt{
			AtMobiles: d.config.AtMobiles,
			IsAtAll:   d.config.AtAll,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return retry.Execute(ctx, d.retry, d.logger, func(ctx context.Context) error {
		return d.post(ctx, payload)
	})
}

// endpoint builds the signed robot URL; the signature covers the current time
func (d *DingTalkNotifier) endpoint() (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("access_token", d.config.AccessToken)
	if d.config.Secret != "" {
		timestamp := d.now().UnixMilli()
		q.Set("timestamp", strconv.FormatInt(timestamp, 10))
		q.Set("sign", d.generateSignature(timestamp))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *DingTalkNotifier) post(ctx context.Context, payload []byte) error {
	endpoint, err := d.endpoint()
	if err != nil {
		return retry.Permanent(fmt.Errorf("invalid dingtalk URL: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		// The request URL carries the access token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("dingtalk api error: status code %d", resp.StatusCode)
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}

	switch {
	case result.ErrCode == 0:
		return nil
	case result.ErrCode == dingTalkThrottled:
		return retry.After(time.Minute, fmt.Errorf("dingtalk rate limit exceeded: %s", result.ErrMsg))
	default:
		return retry.Permanent(fmt.Errorf("dingtalk api error %d: %s", result.ErrCode, result.ErrMsg))
	}
}

// robot send limit, 20 messages per minute
const dingTalkThrottled = 130101

// generateSignature generates signature
func (d *DingTalkNotifier) generateSignature(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, d.config.Secret)
	hmac256 := hmac.New(sha256.New, []byte(d.config.Secret))
	hmac256.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(hmac256.Sum(nil))
}
