package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrRateLimited is returned for a channel that exceeded its budget
var ErrRateLimited = errors.New("notification rate limit exceeded")

// Recorder receives per-channel delivery outcomes
type Recorder interface {
	RecordNotification(channel string, err error)
}

// Manager fans notifications out to every configured channel
type Manager struct {
	config      *Config
	logger      *zap.Logger
	recorder    Recorder
	records     []string
	mu          sync.RWMutex
	notifiers   []Notifier
	rateLimiter *RateLimiter
}

// NewManager creates a manager and initializes every configured channel.
// A channel that fails to initialize is logged and skipped.
func NewManager(cfg *Config, records []string, recorder Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("notify")

	m := &Manager{
		config:      cfg,
		logger:      logger,
		recorder:    recorder,
		records:     records,
		rateLimiter: NewRateLimiter(cfg.RateLimit.Interval, cfg.RateLimit.MaxEvents),
	}

	if cfg.Discord.Enabled() {
		if n, err := NewDiscordNotifier(&cfg.Discord, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize discord notifier", zap.Error(err))
		}
	}

	if cfg.Webhook.Enabled() {
		if n, err := NewWebhookNotifier(&cfg.Webhook, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize webhook notifier", zap.Error(err))
		}
	}

	if cfg.Slack.Enabled() {
		if n, err := NewSlackNotifier(&cfg.Slack, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize slack notifier", zap.Error(err))
		}
	}

	if cfg.Telegram.Enabled() {
		if n, err := NewTelegramNotifier(&cfg.Telegram, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize telegram notifier", zap.Error(err))
		}
	}

	if cfg.DingTalk.Enabled() {
		if n, err := NewDingTalkNotifier(&cfg.DingTalk, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize dingtalk notifier", zap.Error(err))
		}
	}

	if cfg.Feishu.Enabled() {
		if n, err := NewFeishuNotifier(&cfg.Feishu, &cfg.Retry, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize feishu notifier", zap.Error(err))
		}
	}

	if cfg.Kafka.Enabled() {
		if n, err := NewKafkaNotifier(&cfg.Kafka, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize kafka notifier", zap.Error(err))
		}
	}

	if cfg.AMQP.Enabled() {
		if n, err := NewAMQPNotifier(&cfg.AMQP, logger); err == nil {
			m.register(n)
		} else {
			logger.Error("Failed to initialize amqp notifier", zap.Error(err))
		}
	}

	return m
}

// register appends a channel; dispatch calls channels in registration order
func (m *Manager) register(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether any channel is configured
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notifiers) > 0
}

// Channels returns the configured channel types
func (m *Manager) Channels() []ChannelType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Map(m.notifiers, func(n Notifier, _ int) ChannelType { return n.Type() })
}

// StartupEnabled reports whether a startup notification should be sent
func (m *Manager) StartupEnabled() bool {
	return m.config.Startup && m.Enabled()
}

// NotifyChange sends a change to every channel. Unchanged events are ignored.
func (m *Manager) NotifyChange(ctx context.Context, event types.ChangeEvent) error {
	if !event.Kind.Actionable() {
		return nil
	}
	change := &Change{ChangeEvent: event, Records: m.records}
	return m.dispatch("change", func(n Notifier) error {
		return n.NotifyChange(ctx, change)
	})
}

// NotifyStartup announces that monitoring has begun
func (m *Manager) NotifyStartup(ctx context.Context, startup Startup) error {
	if startup.Records == nil {
		startup.Records = m.records
	}
	return m.dispatch("startup", func(n Notifier) error {
		return n.NotifyStartup(ctx, &startup)
	})
}

// NotifyDNSError reports one failed record update
func (m *Manager) NotifyDNSError(ctx context.Context, failure DNSFailure) error {
	if failure.Error == nil {
		failure.Error = &dns.Error{Message: "unknown error"}
	}
	return m.dispatch("dns_error", func(n Notifier) error {
		return n.NotifyDNSError(ctx, &failure)
	})
}

// dispatch calls fn for each channel in order and joins the failures
func (m *Manager) dispatch(kind string, fn func(Notifier) error) error {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	var errs []error
	for _, n := range notifiers {
		channel := n.Type()
		var err error
		if !m.rateLimiter.Allow(channel) {
			err = ErrRateLimited
			m.logger.Warn("Rate limit exceeded for notifier", zap.String("type", string(channel)))
		} else if err = fn(n); err != nil {
			m.logger.Error("Failed to send notification",
				zap.String("type", string(channel)),
				zap.String("kind", kind),
				zap.Error(err))
		} else {
			m.logger.Debug("Notification sent",
				zap.String("type", string(channel)),
				zap.String("kind", kind))
		}

		if m.recorder != nil {
			m.recorder.RecordNotification(string(channel), err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

// Stop closes every channel
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Type(), err))
		}
	}
	return errors.Join(errs...)
}
