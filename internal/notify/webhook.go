package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"ipmonitor/internal/retry"
	"ipmonitor/internal/version"

	"go.uber.org/zap"
)

// Webhook headers
const (
	HeaderEvent     = "X-Ipmonitor-Event"
	HeaderDelivery  = "X-Ipmonitor-Delivery"
	HeaderSignature = "X-Ipmonitor-Signature"
)

// webhookPublisher posts events to a generic HTTP endpoint
type webhookPublisher struct {
	config *WebhookConfig
	retry  *retry.Config
	logger *zap.Logger
	client *http.Client
}

// NewWebhookNotifier creates new webhook notifier
func NewWebhookNotifier(cfg *WebhookConfig, retryCfg *retry.Config, logger *zap.Logger) (Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &eventNotifier{
		channel: ChannelWebhook,
		pub: &webhookPublisher{
			config: cfg,
			retry:  retryCfg,
			logger: logger,
			client: &http.Client{
				Timeout: timeout,
				Transport: &http.Transport{
					MaxIdleConns:        10,
					IdleConnTimeout:     90 * time.Second,
					DisableCompression:  true,
					MaxIdleConnsPerHost: 2,
				},
			},
		},
	}, nil
}

func (p *webhookPublisher) publish(ctx context.Context, event Event, body []byte) error {
	return retry.Execute(ctx, p.retry, p.logger, func(ctx context.Context) error {
		return p.post(ctx, event, body)
	})
}

func (p *webhookPublisher) post(ctx context.Context, event Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderDelivery, event.EventID)
	if p.config.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+calculateSignature(body, []byte(p.config.Secret)))
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			p.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.After(retryAfter(resp.Header), fmt.Errorf("webhook rate limited"))
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("webhook request failed with status %d", resp.StatusCode))
	}
	return nil
}

func (p *webhookPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// calculateSignature returns the hex HMAC-SHA256 of payload
func calculateSignature(payload []byte, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
