package notify

import (
	"context"
	"net/netip"
	"time"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/types"
)

// ChannelType represents the type of notification channel
type ChannelType string

const (
	ChannelDiscord  ChannelType = "discord"
	ChannelWebhook  ChannelType = "webhook"
	ChannelSlack    ChannelType = "slack"
	ChannelTelegram ChannelType = "telegram"
	ChannelDingTalk ChannelType = "dingtalk"
	ChannelFeishu   ChannelType = "feishu"
	ChannelKafka    ChannelType = "kafka"
	ChannelAMQP     ChannelType = "amqp"
)

// Notifier represents a single notification channel
type Notifier interface {
	// Type names the channel
	Type() ChannelType

	// NotifyChange sends an address change or first observation
	NotifyChange(ctx context.Context, change *Change) error

	// NotifyStartup announces that monitoring has begun
	NotifyStartup(ctx context.Context, startup *Startup) error

	// NotifyDNSError reports a failed record update
	NotifyDNSError(ctx context.Context, failure *DNSFailure) error

	// Close releases the channel's connections
	Close() error
}

// Change is a change event with the records it affects
type Change struct {
	types.ChangeEvent
	Records []string
}

// Startup describes the monitor at start
type Startup struct {
	IP            netip.Addr
	CheckInterval time.Duration
	TestMode      bool
	Records       []string
	StartedAt     time.Time
}

// DNSFailure is one failed record update
type DNSFailure struct {
	IP         netip.Addr
	Error      *dns.Error
	ObservedAt time.Time
}
