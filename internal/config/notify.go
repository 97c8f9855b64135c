package config

import (
	"ipmonitor/internal/notify"

	"github.com/spf13/viper"
)

var notifyEnv = [][]string{
	{"notify.startup", "NOTIFY_STARTUP"},
	{"notify.discord.webhook_url", "DISCORD_WEBHOOK_URL"},
	{"notify.webhook.url", "WEBHOOK_URL"},
	{"notify.webhook.secret", "WEBHOOK_SECRET"},
	{"notify.slack.webhook_url", "SLACK_WEBHOOK_URL"},
	{"notify.slack.channel", "SLACK_CHANNEL"},
	{"notify.telegram.bot_token", "TELEGRAM_BOT_TOKEN"},
	{"notify.telegram.chat_ids", "TELEGRAM_CHAT_IDS"},
	{"notify.dingtalk.access_token", "DINGTALK_ACCESS_TOKEN"},
	{"notify.dingtalk.secret", "DINGTALK_SECRET"},
	{"notify.feishu.webhook_url", "FEISHU_WEBHOOK_URL"},
	{"notify.feishu.secret", "FEISHU_SECRET"},
	{"notify.kafka.brokers", "KAFKA_BROKERS"},
	{"notify.kafka.topic", "KAFKA_TOPIC"},
	{"notify.amqp.url", "AMQP_URL"},
	{"notify.amqp.exchange", "AMQP_EXCHANGE"},
	{"notify.amqp.routing_key", "AMQP_ROUTING_KEY"},
}

func setNotifyDefaults(v *viper.Viper) {
	def := notify.DefaultConfig()

	v.SetDefault("notify.startup", def.Startup)
	v.SetDefault("notify.rate_limit.interval", def.RateLimit.Interval)
	v.SetDefault("notify.rate_limit.max_events", def.RateLimit.MaxEvents)

	v.SetDefault("notify.retry.enable", def.Retry.Enable)
	v.SetDefault("notify.retry.max_attempts", def.Retry.MaxAttempts)
	v.SetDefault("notify.retry.interval", def.Retry.Interval)
	v.SetDefault("notify.retry.max_interval", def.Retry.MaxInterval)
	v.SetDefault("notify.retry.multiplier", def.Retry.Multiplier)

	v.SetDefault("notify.discord.webhook_url", "")
	v.SetDefault("notify.discord.username", def.Discord.Username)
	v.SetDefault("notify.discord.avatar_url", "")
	v.SetDefault("notify.discord.timeout", def.Discord.Timeout)

	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.webhook.timeout", def.Webhook.Timeout)

	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.slack.channel", "")
	v.SetDefault("notify.slack.username", def.Slack.Username)
	v.SetDefault("notify.slack.timeout", def.Slack.Timeout)

	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_ids", []string{})
	v.SetDefault("notify.telegram.api_url", "")
	v.SetDefault("notify.telegram.silent", false)
	v.SetDefault("notify.telegram.timeout", def.Telegram.Timeout)

	v.SetDefault("notify.dingtalk.access_token", "")
	v.SetDefault("notify.dingtalk.secret", "")
	v.SetDefault("notify.dingtalk.at_mobiles", []string{})
	v.SetDefault("notify.dingtalk.at_all", false)
	v.SetDefault("notify.dingtalk.api_url", "")
	v.SetDefault("notify.dingtalk.timeout", def.DingTalk.Timeout)

	v.SetDefault("notify.feishu.webhook_url", "")
	v.SetDefault("notify.feishu.secret", "")
	v.SetDefault("notify.feishu.timeout", def.Feishu.Timeout)

	v.SetDefault("notify.kafka.brokers", []string{})
	v.SetDefault("notify.kafka.topic", def.Kafka.Topic)
	v.SetDefault("notify.kafka.write_timeout", def.Kafka.WriteTimeout)

	v.SetDefault("notify.amqp.url", "")
	v.SetDefault("notify.amqp.exchange", def.AMQP.Exchange)
	v.SetDefault("notify.amqp.routing_key", def.AMQP.RoutingKey)
}
