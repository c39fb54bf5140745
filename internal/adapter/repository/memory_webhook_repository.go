package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/model"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"gorm.io/datatypes"
)

type memoryWebhookRepository struct {
	mu     sync.Mutex
	events map[string]*model.StripeWebhookEvent
}

// NewMemoryWebhookRepository creates an in-memory webhook event repository
func NewMemoryWebhookRepository() repository.WebhookRepository {
	return &memoryWebhookRepository{
		events: make(map[string]*model.StripeWebhookEvent),
	}
}

func (r *memoryWebhookRepository) SaveEvent(_ context.Context, eventID, eventType string, data json.RawMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[eventID]; ok {
		return false, nil
	}
	r.events[eventID] = &model.StripeWebhookEvent{
		ID:              int64(len(r.events) + 1),
		StripeEventID:   eventID,
		EventType:       eventType,
		Status:          model.WebhookStatusPending,
		Data:            datatypes.JSON(data),
		StripeCreatedAt: stripeCreatedAt(data),
		CreatedAt:       time.Now().UTC(),
	}
	return true, nil
}

func (r *memoryWebhookRepository) GetEvent(_ context.Context, eventID string) (*model.StripeWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return nil, nil
	}
	cp := *event
	return &cp, nil
}

func (r *memoryWebhookRepository) MarkProcessed(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}
	now := time.Now().UTC()
	event.Status = model.WebhookStatusCompleted
	event.ProcessedAt = &now
	event.LastError = nil
	return nil
}

func (r *memoryWebhookRepository) MarkFailed(_ context.Context, eventID string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}
	msg := cause.Error()
	event.Status = model.WebhookStatusFailed
	event.ProcessingAttempts++
	event.LastError = &msg
	return nil
}
