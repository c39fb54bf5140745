package model

import (
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
)

// PaymentLink is the persisted form of entity.PaymentLink. Seq is assigned
// by the database on insert and orders rows by creation.
type PaymentLink struct {
	Seq                 uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	ID                  string     `gorm:"uniqueIndex;size:36;not null" json:"id"`
	Token               string     `gorm:"uniqueIndex;size:32;not null" json:"token"`
	OrderID             string     `gorm:"column:order_id;size:255;index" json:"order_id"`
	Email               string     `gorm:"size:255;index" json:"email"`
	AmountCents         int64      `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Currency            string     `gorm:"size:3;not null" json:"currency"`
	Status              string     `gorm:"size:20;not null;index" json:"status"`
	ExternalSessionRef  string     `gorm:"column:external_session_ref;size:255;index" json:"external_session_ref"`
	CheckoutURL         string     `gorm:"column:checkout_url" json:"checkout_url"`
	NeedsReconciliation bool       `gorm:"not null;default:false" json:"needs_reconciliation"`
	ReconciliationRef   string     `gorm:"size:255" json:"reconciliation_ref"`
	ReconciliationAt    *time.Time `json:"reconciliation_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;index" json:"created_at"`
	ExpiresAt           time.Time  `gorm:"not null" json:"expires_at"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	ExpiredAt           *time.Time `json:"expired_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PaymentLink) TableName() string {
	return "payment_links"
}

// PaymentLinkFromEntity converts a domain link into its row
func PaymentLinkFromEntity(link *entity.PaymentLink) *PaymentLink {
	return &PaymentLink{
		ID:                  link.ID,
		Token:               link.Token,
		OrderID:             link.OrderID,
		Email:               link.Email,
		AmountCents:         link.Amount,
		Currency:            link.Currency,
		Status:              string(link.Status),
		ExternalSessionRef:  link.ExternalSessionRef,
		CheckoutURL:         link.CheckoutURL,
		NeedsReconciliation: link.NeedsReconciliation,
		ReconciliationRef:   link.ReconciliationRef,
		ReconciliationAt:    link.ReconciliationAt,
		CreatedAt:           link.CreatedAt,
		ExpiresAt:           link.ExpiresAt,
		PaidAt:              link.PaidAt,
		ExpiredAt:           link.ExpiredAt,
	}
}

// ToEntity converts the row into a domain link. Times are normalised to UTC
// since SQLite hands them back in the local zone.
func (m *PaymentLink) ToEntity() *entity.PaymentLink {
	return &entity.PaymentLink{
		ID:                  m.ID,
		Token:               m.Token,
		OrderID:             m.OrderID,
		Email:               m.Email,
		Amount:              m.AmountCents,
		Currency:            m.Currency,
		Status:              entity.LinkStatus(m.Status),
		ExternalSessionRef:  m.ExternalSessionRef,
		CheckoutURL:         m.CheckoutURL,
		NeedsReconciliation: m.NeedsReconciliation,
		ReconciliationRef:   m.ReconciliationRef,
		ReconciliationAt:    utcPtr(m.ReconciliationAt),
		CreatedAt:           m.CreatedAt.UTC(),
		ExpiresAt:           m.ExpiresAt.UTC(),
		PaidAt:              utcPtr(m.PaidAt),
		ExpiredAt:           utcPtr(m.ExpiredAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
