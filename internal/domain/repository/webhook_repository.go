package repository

import (
	"context"
	"encoding/json"

	"github.com/wekeepgrowing/paylink/internal/domain/model"
)

// WebhookRepository handles webhook event storage and processing
type WebhookRepository interface {
	// SaveEvent stores a new event and reports whether it was inserted.
	// A duplicate event id is not an error.
	SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) (bool, error)
	// GetEvent returns nil, nil when the event is unknown.
	GetEvent(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, err error) error
}
