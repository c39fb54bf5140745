package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"go.uber.org/zap"
)

// Stripe rejects checkout session expiries outside this window.
const (
	minSessionLifetime = 30 * time.Minute
	maxSessionLifetime = 24 * time.Hour
)

// Config configures the Stripe checkout provider
type Config struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL is the public address customers return to after checkout.
	BaseURL string
	// APIURL overrides the Stripe API endpoint, used by tests.
	APIURL string
}

// StripeProvider implements the CheckoutProvider interface with Stripe Checkout
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	baseURL       string
	logger        *zap.Logger
}

// NewStripeProvider creates a new Stripe provider with its own API client
func NewStripeProvider(cfg Config, logger *zap.Logger) *StripeProvider {
	backendConfig := &stripe.BackendConfig{
		LeveledLogger: logger.Named("stripe").Sugar(),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(cfg.APIURL)
		backendConfig.MaxNetworkRetries = stripe.Int64(0)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		logger:        logger,
	}
}

// GetProviderName returns the provider name
func (s *StripeProvider) GetProviderName() string {
	return string(provider.ProviderTypeStripe)
}

// CreateSession creates a one-off payment Checkout Session for the link
func (s *StripeProvider) CreateSession(ctx context.Context, req *provider.CreateSessionRequest) (*provider.Session, error) {
	params := buildSessionParams(req, s.baseURL, time.Now())
	params.Context = ctx

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError("failed to create checkout session", err)
	}

	s.logger.Debug("Stripe checkout session created",
		zap.String("session_id", cs.ID),
		zap.String("link_id", req.LinkID))
	return toSession(cs), nil
}

// GetSession retrieves a Checkout Session
func (s *StripeProvider) GetSession(ctx context.Context, sessionID string) (*provider.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, providerError("failed to retrieve checkout session", err)
	}
	return toSession(cs), nil
}

// ExpireSession expires an open Checkout Session
func (s *StripeProvider) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := s.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return providerError("failed to expire checkout session", err)
	}
	return nil
}

// HandleWebhook verifies the Stripe-Signature header and decodes the event
func (s *StripeProvider) HandleWebhook(_ context.Context, payload []byte, signature string) (*provider.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeInvalidSignature,
			Message: "webhook signature verification failed",
			Details: err.Error(),
		}
	}

	result := &provider.WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Raw:       payload,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	if strings.HasPrefix(string(event.Type), "checkout.session.") && event.Data != nil {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, &provider.ProviderError{
				Code:    provider.ErrCodeInvalidPayload,
				Message: "failed to parse checkout session",
				Details: err.Error(),
			}
		}
		result.Session = toSession(&cs)
	}

	return result, nil
}

// buildSessionParams builds a payment mode session with inline price data.
// The link id travels as client_reference_id and metadata.
func buildSessionParams(req *provider.CreateSessionRequest, baseURL string, now time.Time) *stripe.CheckoutSessionParams {
	token := url.QueryEscape(req.Token)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.LinkID),
		SuccessURL:        stripe.String(baseURL + "/payment_success?session_id={CHECKOUT_SESSION_ID}&token=" + token),
		CancelURL:         stripe.String(baseURL + "/payment_cancelled?token=" + token),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	// Shorter link lifetimes are enforced locally and by ExpireSession.
	lifetime := req.ExpiresAt.Sub(now)
	if lifetime >= minSessionLifetime && lifetime <= maxSessionLifetime {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}

	params.AddMetadata("payment_link_id", req.LinkID)
	params.AddMetadata("payment_token", req.Token)
	return params
}

func toSession(cs *stripe.CheckoutSession) *provider.Session {
	linkID := cs.ClientReferenceID
	if linkID == "" && cs.Metadata != nil {
		linkID = cs.Metadata["payment_link_id"]
	}
	return &provider.Session{
		ID:            cs.ID,
		URL:           cs.URL,
		LinkID:        linkID,
		Status:        string(cs.Status),
		PaymentStatus: provider.PaymentStatus(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
	}
}

func providerError(message string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &provider.ProviderError{
			Code:    string(stripeErr.Code),
			Message: message,
			Details: stripeErr.Msg,
		}
	}
	return &provider.ProviderError{
		Code:    provider.ErrCodeAPI,
		Message: message,
		Details: err.Error(),
	}
}
