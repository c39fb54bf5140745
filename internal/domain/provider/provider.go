package provider

import (
	"context"
	"time"
)

// CheckoutProvider defines the hosted checkout operations the link lifecycle needs
type CheckoutProvider interface {
	// CreateSession creates a hosted checkout session for a payment link
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error)

	// GetSession reads back a session, e.g. when the customer returns from checkout
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ExpireSession closes a still-open session so it can no longer be paid
	ExpireSession(ctx context.Context, sessionID string) error

	// HandleWebhook verifies and decodes a provider webhook delivery
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// CreateSessionRequest represents a provider-agnostic checkout session request
type CreateSessionRequest struct {
	LinkID      string    `json:"link_id"`
	Token       string    `json:"token"`
	Amount      int64     `json:"amount"` // Amount in smallest currency unit
	Currency    string    `json:"currency"`
	ProductName string    `json:"product_name"`
	Email       string    `json:"email,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session represents a hosted checkout session
type Session struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	LinkID        string        `json:"link_id"` // client reference
	Status        string        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	AmountTotal   int64         `json:"amount_total"`
	Currency      string        `json:"currency"`
}

// IsPaid reports whether the provider has captured funds for the session
func (s *Session) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// WebhookEvent represents a verified provider webhook event
type WebhookEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Session   *Session  `json:"session,omitempty"` // set for checkout.session.* events
	Raw       []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentStatus represents the payment state of a checkout session
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Webhook event types the lifecycle reacts to
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired               = "checkout.session.expired"
)

// ProviderType represents the type of checkout provider
type ProviderType string

const (
	ProviderTypeStripe ProviderType = "stripe"
)

// Error types for provider operations
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Provider error codes
const (
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeInvalidPayload   = "invalid_payload"
	ErrCodeAPI              = "api_error"
)
