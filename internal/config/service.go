package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// DefaultLinkTTL is how long a payment link stays payable.
const DefaultLinkTTL = 5 * time.Minute

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// BaseURL is the public origin used to build pay page and Stripe return URLs.
	BaseURL         string        `yaml:"base_url"`
	LinkTTL         time.Duration `yaml:"link_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	SweepBatchSize  int           `yaml:"sweep_batch_size"`
	CheckoutTimeout time.Duration `yaml:"checkout_timeout"`
	Stripe          StripeConfig  `yaml:"stripe"`
	Admin           AdminConfig   `yaml:"admin"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	PublicKey     string `yaml:"public_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
}

type AdminConfig struct {
	// JWTSecret protects the list and export endpoints. Empty leaves them open.
	JWTSecret string `yaml:"jwt_secret"`
}

func defaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:            "paylink",
		Environment:     "dev",
		BaseURL:         "http://localhost:8000",
		LinkTTL:         DefaultLinkTTL,
		SweepInterval:   30 * time.Second,
		SweepBatchSize:  100,
		CheckoutTimeout: 10 * time.Second,
		Stripe: StripeConfig{
			Currency: "usd",
		},
	}
}

func (c *ServiceConfig) Validate() error {
	if c.Stripe.SecretKey == "" || c.Stripe.PublicKey == "" {
		return errors.New("stripe keys must be set (service.stripe.secret_key, service.stripe.public_key)")
	}
	if c.LinkTTL <= 0 {
		return fmt.Errorf("service.link_ttl must be positive, got %s", c.LinkTTL)
	}
	if c.CheckoutTimeout <= 0 {
		return fmt.Errorf("service.checkout_timeout must be positive, got %s", c.CheckoutTimeout)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("service.sweep_interval must not be negative, got %s", c.SweepInterval)
	}
	if _, err := currency.ParseISO(c.Stripe.Currency); err != nil {
		return fmt.Errorf("service.stripe.currency must be an ISO 4217 code, got %q", c.Stripe.Currency)
	}
	c.Stripe.Currency = strings.ToLower(c.Stripe.Currency)
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

func (c *ServiceConfig) IsProduction() bool {
	return c.Environment == "production"
}
