package config

import (
	"ipmonitor/internal/logger"

	"github.com/spf13/viper"
)

var logEnv = [][]string{
	{"log.level", "LOG_LEVEL"},
	{"log.file", "LOG_FILE"},
	{"log.format", "LOG_FORMAT"},
}

func setLogDefaults(v *viper.Viper) {
	def := logger.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", def.MaxSize)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.max_age", def.MaxAge)
	v.SetDefault("log.compress", def.Compress)
}
