package provider

import (
	"fmt"

	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	stripeProvider "github.com/wekeepgrowing/paylink/internal/infrastructure/provider/stripe"
	"go.uber.org/zap"
)

// Factory creates checkout providers based on the provider type
type Factory struct {
	config *config.Config
	logger *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(config *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// GetProvider returns a checkout provider based on the provider type
func (f *Factory) GetProvider(providerType provider.ProviderType) (provider.CheckoutProvider, error) {
	switch providerType {
	case provider.ProviderTypeStripe:
		return f.createStripeProvider()
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// createStripeProvider creates a new Stripe provider instance
func (f *Factory) createStripeProvider() (provider.CheckoutProvider, error) {
	stripeCfg := f.config.Service.Stripe
	if stripeCfg.SecretKey == "" {
		return nil, fmt.Errorf("Stripe secret key not configured")
	}
	if stripeCfg.WebhookSecret == "" {
		f.logger.Warn("Stripe webhook secret not configured; webhook deliveries will be rejected")
	}

	return stripeProvider.NewStripeProvider(stripeProvider.Config{
		SecretKey:     stripeCfg.SecretKey,
		WebhookSecret: stripeCfg.WebhookSecret,
		BaseURL:       f.config.Service.BaseURL,
	}, f.logger), nil
}
