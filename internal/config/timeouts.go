package config

import (
	"time"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/retry"
	"ipmonitor/internal/source"
)

const (
	// channelTimeout applies to channels without their own timeout
	channelTimeout = 10 * time.Second
	// stateTimeout covers a single state save
	stateTimeout = 5 * time.Second
)

// CycleTimeout is the worst-case duration of one cycle under the configured
// timeouts: every source fails, every record update times out and every
// notification exhausts its retries.
func (c *Config) CycleTimeout() time.Duration {
	var total time.Duration

	if !c.TestMode {
		for _, s := range c.Sources {
			total += orDefault(s.Timeout, source.DefaultTimeout)
		}
	}

	records := len(c.DNS.RecordNames())
	total += time.Duration(records) * orDefault(c.DNS.Timeout, dns.DefaultTimeout)

	// startup and change notifications, plus one DNS error per record
	deliveries := time.Duration(2 + records)
	total += deliveries * c.notifyTimeout()

	if c.History.Enabled() {
		total += orDefault(c.History.QueryTimeout, channelTimeout)
	}
	return total + stateTimeout
}

// notifyTimeout is the worst case for one notification across all channels.
// Channels are called in turn, so their budgets add up.
func (c *Config) notifyTimeout() time.Duration {
	n := &c.Notify
	var total time.Duration

	retried := func(enabled bool, timeout time.Duration) {
		if enabled {
			total += retryBudget(&n.Retry, orDefault(timeout, channelTimeout))
		}
	}
	retried(n.Discord.Enabled(), n.Discord.Timeout)
	retried(n.Webhook.Enabled(), n.Webhook.Timeout)
	retried(n.Slack.Enabled(), n.Slack.Timeout)
	retried(n.DingTalk.Enabled(), n.DingTalk.Timeout)
	retried(n.Feishu.Enabled(), n.Feishu.Timeout)
	if n.Telegram.Enabled() {
		total += time.Duration(len(n.Telegram.ChatIDs)) *
			retryBudget(&n.Retry, orDefault(n.Telegram.Timeout, channelTimeout))
	}

	if n.Kafka.Enabled() {
		total += orDefault(n.Kafka.WriteTimeout, channelTimeout)
	}
	if n.AMQP.Enabled() {
		total += channelTimeout
	}
	return total
}

// retryBudget bounds retry.Execute for an operation limited to timeout per attempt
func retryBudget(cfg *retry.Config, timeout time.Duration) time.Duration {
	if cfg == nil || !cfg.Enable || cfg.MaxAttempts <= 1 {
		return timeout
	}

	multiplier := cfg.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	total := time.Duration(cfg.MaxAttempts) * timeout
	delay := cfg.Interval
	for i := 1; i < cfg.MaxAttempts; i++ {
		// Retry-After hints may stretch a wait up to MaxInterval
		wait := delay
		if cfg.MaxInterval > 0 {
			wait = cfg.MaxInterval
		}
		total += wait
		delay = time.Duration(float64(delay) * multiplier)
	}
	return total
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
