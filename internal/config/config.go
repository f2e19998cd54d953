package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at startup from an
// optional config file plus MARKETPAY_* environment overrides.
type Config struct {
	Service  string        `mapstructure:"service"`
	Env      string        `mapstructure:"env"`
	HTTPAddr string        `mapstructure:"http_addr"`
	Shutdown time.Duration `mapstructure:"shutdown_timeout"`

	Gateway GatewayConfig `mapstructure:"gateway"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
}

type GatewayConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	StuckAge time.Duration `mapstructure:"stuck_age"`
}

// Load reads configuration from the given path (directory or empty for cwd),
// falling back to defaults and environment variables. A missing config file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKETPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service", "marketpay")
	v.SetDefault("env", "dev")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("gateway.base_url", "https://api.paystack.co")
	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("sweep.interval", time.Minute)
	v.SetDefault("sweep.stuck_age", 10*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Gateway.SecretKey == "" {
		return nil, fmt.Errorf("gateway.secret_key is required (MARKETPAY_GATEWAY_SECRET_KEY)")
	}
	if cfg.Gateway.WebhookSecret == "" {
		cfg.Gateway.WebhookSecret = cfg.Gateway.SecretKey
	}
	return &cfg, nil
}
