package entity

import "time"

type LinkEventType string

const (
	LinkEventCreated         LinkEventType = "link.created"
	LinkEventPaid            LinkEventType = "link.paid"
	LinkEventExpired         LinkEventType = "link.expired"
	LinkEventPaymentConflict LinkEventType = "link.payment_conflict"
)

// LinkEvent is published after a lifecycle change has been stored.
type LinkEvent struct {
	Type       LinkEventType `json:"type"`
	LinkID     string        `json:"link_id"`
	Status     LinkStatus    `json:"status"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	SessionRef string        `json:"session_ref,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewLinkEvent(eventType LinkEventType, link *PaymentLink, at time.Time) LinkEvent {
	return LinkEvent{
		Type:       eventType,
		LinkID:     link.ID,
		Status:     link.Status,
		Amount:     link.Amount,
		Currency:   link.Currency,
		SessionRef: link.ExternalSessionRef,
		OccurredAt: at,
	}
}
