package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/model"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent saves a new webhook event
func (r *webhookRepository) SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) (bool, error) {
	event := &model.StripeWebhookEvent{
		StripeEventID:   eventID,
		EventType:       eventType,
		Status:          model.WebhookStatusPending,
		Data:            datatypes.JSON(data),
		StripeCreatedAt: stripeCreatedAt(data),
		CreatedAt:       time.Now().UTC(),
	}

	// Use ON CONFLICT to handle duplicate deliveries
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_event_id"}}, DoNothing: true}).
		Create(event)
	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// GetEvent retrieves a webhook event by ID
func (r *webhookRepository) GetEvent(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error) {
	var event model.StripeWebhookEvent

	err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessed marks a webhook event as processed
func (r *webhookRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.WebhookStatusCompleted,
			"processed_at": now,
			"last_error":   nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark webhook as processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}

// MarkFailed records a failed processing attempt. The provider redelivers,
// so no retry schedule is kept here.
func (r *webhookRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	errorMsg := cause.Error()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": gorm.Expr("processing_attempts + 1"),
			"last_error":          errorMsg,
		})
	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	return nil
}

func stripeCreatedAt(data json.RawMessage) *time.Time {
	var envelope struct {
		Created int64 `json:"created"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Created == 0 {
		return nil
	}
	t := time.Unix(envelope.Created, 0).UTC()
	return &t
}
