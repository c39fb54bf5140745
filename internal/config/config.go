package config

import (
	"fmt"

	pkgconfig "github.com/wekeepgrowing/paylink/pkg/config"
	"github.com/wekeepgrowing/paylink/pkg/logger"
)

const serviceName = "paylink"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      logger.Config  `yaml:"log"`
}

// legacyEnv maps config keys to the plain environment variables the service
// has always accepted alongside the PAYLINK_ prefixed ones.
var legacyEnv = map[string][]string{
	"service.stripe.secret_key":     {"PAYLINK_SERVICE_STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY"},
	"service.stripe.public_key":     {"PAYLINK_SERVICE_STRIPE_PUBLIC_KEY", "STRIPE_PUBLIC_KEY"},
	"service.stripe.webhook_secret": {"PAYLINK_SERVICE_STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET"},
	"database.dsn":                  {"PAYLINK_DATABASE_DSN", "DATABASE_URL"},
}

// LoadConfig loads configs/{APP_ENV}/paylink.yaml (or CONFIG_PATH), applies
// environment overrides and defaults, and validates the result.
func LoadConfig() (*Config, error) {
	src, err := pkgconfig.Load(serviceName)
	if err != nil {
		return nil, err
	}

	for key, envs := range legacyEnv {
		if err := src.BindEnv(key, envs...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := src.Decode(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config populated with the values used when a key is
// absent from the file.
func Default() *Config {
	return &Config{
		Service:  defaultServiceConfig(),
		Database: defaultDatabaseConfig(),
		Server:   defaultServerConfig(),
		Redis:    defaultRedisConfig(),
		Log: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	return nil
}
