package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ipmonitor/internal/retry"

	"go.uber.org/zap"
)

// DefaultTelegramURL is the Bot API base
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramNotifier represents Telegram notifier
type TelegramNotifier struct {
	config  *TelegramConfig
	retry   *retry.Config
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

// TelegramMessage represents Telegram message
type TelegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// NewTelegramNotifier creates new Telegram notifier
func NewTelegramNotifier(cfg *TelegramConfig, retryCfg *retry.Config, logger *zap.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("telegram bot token and chat IDs are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}

	return &TelegramNotifier{
		config:  cfg,
		retry:   retryCfg,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
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
func (n *TelegramNotifier) Type() ChannelType { return ChannelTelegram }

// NotifyChange sends IP change notification
func (n *TelegramNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return n.sendToAll(ctx, telegramText("🌐", changeEmbed(change)))
}

// NotifyStartup sends startup notification
func (n *TelegramNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return n.sendToAll(ctx, telegramText("🚀", startupEmbed(startup)))
}

// NotifyDNSError sends DNS update failure notification
func (n *TelegramNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return n.sendToAll(ctx, telegramText("🚨", dnsErrorEmbed(failure)))
}

// Close implements Notifier
func (n *TelegramNotifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

// telegramText renders an embed as an HTML message
func telegramText(icon string, embed DiscordEmbed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", icon, html.EscapeString(embed.Title))
	for _, f := range embed.Fields {
		value := strings.ReplaceAll(f.Value, "**", "")
		if strings.Contains(value, "\n") {
			fmt.Fprintf(&b, "\n<b>%s:</b>\n<pre>%s</pre>", html.EscapeString(f.Name), html.EscapeString(value))
			continue
		}
		fmt.Fprintf(&b, "\n• %s: <code>%s</code>", html.EscapeString(f.Name), html.EscapeString(value))
	}
	return b.String()
}

// sendToAll sends message to all chat IDs
func (n *TelegramNotifier) sendToAll(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.config.ChatIDs {
		err := retry.Execute(ctx, n.retry, n.logger, func(ctx context.Context) error {
			return n.sendMessage(ctx, chatID, text)
		})
		if err != nil {
			n.logger.Error("Failed to send telegram message",
				zap.Error(err),
				zap.String("chat_id", chatID))
			errs = append(errs, fmt.Errorf("chat_id %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// sendMessage sends a message to a specific chat ID
func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(TelegramMessage{
		ChatID:              chatID,
		Text:                text,
		ParseMode:           "HTML",
		DisableNotification: n.config.Silent,
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal message: %w", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The request URL carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiResp struct {
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiResp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		return retry.After(delay, fmt.Errorf("telegram rate limit exceeded"))
	case decodeErr != nil || apiResp.Description == "":
		err = fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	default:
		err = fmt.Errorf("telegram API error: %s", apiResp.Description)
	}
	if resp.StatusCode >= 500 {
		return err
	}
	return retry.Permanent(err)
}
