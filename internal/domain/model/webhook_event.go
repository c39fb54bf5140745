package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// StripeWebhookEvent records a verified Stripe delivery for dedupe and audit
type StripeWebhookEvent struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeEventID      string         `gorm:"uniqueIndex;not null;size:255" json:"stripe_event_id"`
	EventType          string         `gorm:"not null;size:100;index" json:"event_type"`
	Status             WebhookStatus  `gorm:"size:20;not null;default:pending;index" json:"status"`
	Data               datatypes.JSON `gorm:"not null" json:"data"`
	ProcessingAttempts int            `gorm:"not null;default:0" json:"processing_attempts"`
	LastError          *string        `json:"last_error,omitempty"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`
	StripeCreatedAt    *time.Time     `json:"stripe_created_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (StripeWebhookEvent) TableName() string {
	return "stripe_webhook_events"
}

// IsCompleted reports whether the event was already applied
func (e *StripeWebhookEvent) IsCompleted() bool {
	return e.Status == WebhookStatusCompleted
}
