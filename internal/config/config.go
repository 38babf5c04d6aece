package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode      string `mapstructure:"mode"`
	Port      int    `mapstructure:"port"`
	ReadLimit int64  `mapstructure:"read_limit"`

	// Liveness: a connection missing MissedPings consecutive pings is
	// force-closed through the same path as a client disconnect.
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	MissedPings int           `mapstructure:"missed_pings"`

	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Rate    RateConfig    `mapstructure:"rate"`
	History HistoryConfig `mapstructure:"history"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	// Permissive admits connections without a credential and hands them a
	// provisional identity. Local development only; never a default.
	Permissive bool `mapstructure:"permissive"`
}

type RateConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type HistoryConfig struct {
	Size   int           `mapstructure:"size"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("missed_pings", 2)
	v.SetDefault("shutdown_grace", "5s")
	v.SetDefault("auth.issuer", "synchub")
	v.SetDefault("auth.permissive", false)
	v.SetDefault("rate.limit", 100)
	v.SetDefault("rate.window", "60s")
	v.SetDefault("history.size", 50)
	v.SetDefault("history.max_age", "24h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
