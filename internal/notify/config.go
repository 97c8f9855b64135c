package notify

import (
	"time"

	"ipmonitor/internal/retry"
)

// Config represents notification configuration
type Config struct {
	Startup   bool            `mapstructure:"startup"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     retry.Config    `mapstructure:"retry"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	DingTalk  DingTalkConfig  `mapstructure:"dingtalk"`
	Feishu    FeishuConfig    `mapstructure:"feishu"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
}

// RateLimitConfig bounds notifications per channel
type RateLimitConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	MaxEvents int           `mapstructure:"max_events" validate:"gte=0"`
}

// DiscordConfig represents Discord webhook configuration
type DiscordConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Username   string        `mapstructure:"username"`
	AvatarURL  string        `mapstructure:"avatar_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c DiscordConfig) Enabled() bool { return c.WebhookURL != "" }

// WebhookConfig represents generic webhook configuration
type WebhookConfig struct {
	URL     string            `mapstructure:"url" validate:"omitempty,url"`
	Secret  string            `mapstructure:"secret"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c WebhookConfig) Enabled() bool { return c.URL != "" }

// SlackConfig represents Slack incoming webhook configuration
type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Channel    string        `mapstructure:"channel"`
	Username   string        `mapstructure:"username"`
	IconEmoji  string        `mapstructure:"icon_emoji"`
	IconURL    string        `mapstructure:"icon_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c SlackConfig) Enabled() bool { return c.WebhookURL != "" }

// TelegramConfig represents Telegram bot configuration
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatIDs  []string      `mapstructure:"chat_ids" validate:"required_with=BotToken"`
	APIURL   string        `mapstructure:"api_url" validate:"omitempty,url"`
	Silent   bool          `mapstructure:"silent"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c TelegramConfig) Enabled() bool { return c.BotToken != "" && len(c.ChatIDs) > 0 }

// DingTalkConfig represents DingTalk robot configuration
type DingTalkConfig struct {
	AccessToken string        `mapstructure:"access_token"`
	Secret      string        `mapstructure:"secret"`
	AtMobiles   []string      `mapstructure:"at_mobiles"`
	AtAll       bool          `mapstructure:"at_all"`
	APIURL      string        `mapstructure:"api_url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c DingTalkConfig) Enabled() bool { return c.AccessToken != "" }

// FeishuConfig represents Feishu custom bot configuration
type FeishuConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the channel is configured
func (c FeishuConfig) Enabled() bool { return c.WebhookURL != "" }

// KafkaConfig represents Kafka publisher configuration
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic" validate:"required_with=Brokers"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether the channel is configured
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// AMQPConfig represents RabbitMQ publisher configuration
type AMQPConfig struct {
	URL        string `mapstructure:"url" validate:"omitempty,url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// Enabled reports whether the channel is configured
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

// DefaultConfig returns notification defaults with no channels enabled
func DefaultConfig() Config {
	return Config{
		Startup: true,
		RateLimit: RateLimitConfig{
			Interval:  time.Minute,
			MaxEvents: 0,
		},
		Retry: *retry.DefaultRetryConfig(),
		Discord: DiscordConfig{
			Username: "IP Monitor",
			Timeout:  10 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Slack: SlackConfig{
			Username: "IP Monitor",
			Timeout:  10 * time.Second,
		},
		Telegram: TelegramConfig{
			Timeout: 10 * time.Second,
		},
		DingTalk: DingTalkConfig{
			Timeout: 10 * time.Second,
		},
		Feishu: FeishuConfig{
			Timeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:        "ipmonitor.events",
			WriteTimeout: 10 * time.Second,
		},
		AMQP: AMQPConfig{
			Exchange:   "ipmonitor",
			RoutingKey: "ipmonitor.events",
		},
	}
}
