package config

import (
	"errors"
	"time"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/source"
	"ipmonitor/internal/state"
	"ipmonitor/internal/types"

	"github.com/spf13/viper"
)

// coreEnv maps config keys to environment variables. When several variables
// are listed the first one set wins.
var coreEnv = [][]string{
	{"check_interval", "CHECK_INTERVAL"},
	{"ip_version", "IP_VERSION"},
	{"source_urls", "IP_SOURCES"},
	{"test_mode", "TEST_MODE"},
	{"test_ip", "TEST_IP"},

	{"state.backend", "STATE_BACKEND"},
	{"state.file", "STATE_FILE"},
	{"state.redis.addr", "REDIS_ADDR"},
	{"state.redis.username", "REDIS_USERNAME"},
	{"state.redis.password", "REDIS_PASSWORD"},
	{"state.redis.db", "REDIS_DB"},
	{"state.redis.key", "REDIS_KEY"},

	{"dns.provider", "DNS_PROVIDER"},
	{"dns.domain", "DNS_DOMAIN", "HOSTINGER_DOMAIN"},
	{"dns.record_name", "DNS_RECORD_NAME", "HOSTINGER_RECORD_NAME"},
	{"dns.api_key", "DNS_API_KEY", "HOSTINGER_API_KEY", "CLOUDFLARE_API_TOKEN"},
	{"dns.api_url", "DNS_API_URL", "HOSTINGER_API_URL"},
	{"dns.ttl", "DNS_TTL"},
	{"dns.proxied", "CLOUDFLARE_PROXIED"},
	{"dns.dokploy.enabled", "DOKPLOY"},
	{"dns.dokploy.record_name", "DOKPLOY_RECORD_NAME"},

	{"history.driver", "HISTORY_DRIVER"},
	{"history.dsn", "HISTORY_DSN"},
	{"history.retention", "HISTORY_RETENTION"},

	{"api.addr", "STATUS_ADDR"},
}

// setDefaults registers a default for every key so that environment
// overrides are seen by Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("check_interval", 300)
	v.SetDefault("ip_version", string(types.IPVersionV4))
	v.SetDefault("source_urls", "")
	v.SetDefault("sources", source.DefaultConfigs())
	v.SetDefault("test_mode", false)
	v.SetDefault("test_ip", DefaultTestIP)

	v.SetDefault("state.backend", BackendFile)
	v.SetDefault("state.file", state.DefaultFile)
	v.SetDefault("state.redis.addr", "")
	v.SetDefault("state.redis.username", "")
	v.SetDefault("state.redis.password", "")
	v.SetDefault("state.redis.db", 0)
	v.SetDefault("state.redis.key", state.DefaultRedisKey)
	v.SetDefault("state.redis.dial_timeout", state.DefaultDialTimeout)

	v.SetDefault("dns.provider", dns.ProviderHostinger)
	v.SetDefault("dns.domain", "")
	v.SetDefault("dns.record_name", "@")
	v.SetDefault("dns.api_key", "")
	v.SetDefault("dns.api_url", "")
	v.SetDefault("dns.ttl", dns.DefaultTTL)
	v.SetDefault("dns.proxied", false)
	v.SetDefault("dns.timeout", dns.DefaultTimeout)
	v.SetDefault("dns.dokploy.enabled", false)
	v.SetDefault("dns.dokploy.record_name", "dokploy")

	v.SetDefault("history.driver", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.retention", 0)
	v.SetDefault("history.auto_migrate", true)

	v.SetDefault("api.addr", "")
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.debug", false)

	setNotifyDefaults(v)
	setLogDefaults(v)
}

func bindEnv(v *viper.Viper) error {
	var errs []error
	for _, table := range [][][]string{coreEnv, notifyEnv, logEnv} {
		for _, binding := range table {
			errs = append(errs, v.BindEnv(binding...))
		}
	}
	return errors.Join(errs...)
}
