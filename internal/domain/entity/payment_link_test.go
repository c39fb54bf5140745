package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaymentLink_EffectiveStatus(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	link := &PaymentLink{
		Status:    LinkStatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(5 * time.Minute),
	}

	assert.Equal(t, LinkStatusPending, link.EffectiveStatus(createdAt))
	assert.Equal(t, LinkStatusPending, link.EffectiveStatus(link.ExpiresAt), "expiry is strictly after expires_at")
	assert.Equal(t, LinkStatusExpired, link.EffectiveStatus(link.ExpiresAt.Add(time.Second)))

	link.Status = LinkStatusPaid
	assert.Equal(t, LinkStatusPaid, link.EffectiveStatus(link.ExpiresAt.Add(time.Hour)))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusPaid))
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusExpired))
	assert.False(t, CanTransition(LinkStatusPaid, LinkStatusExpired))
	assert.False(t, CanTransition(LinkStatusExpired, LinkStatusPaid))
	assert.False(t, CanTransition(LinkStatusPaid, LinkStatusPending))
	assert.False(t, CanTransition(LinkStatusPending, LinkStatusPending))
}

func TestPaymentLink_DisplayAmount(t *testing.T) {
	assert.Equal(t, "10.00", (&PaymentLink{Amount: 1000}).DisplayAmount())
	assert.Equal(t, "0.99", (&PaymentLink{Amount: 99}).DisplayAmount())
	assert.Equal(t, "1234.05", (&PaymentLink{Amount: 123405}).DisplayAmount())
	assert.Equal(t, "10.00", (&PaymentLink{Amount: 1000, Currency: "usd"}).DisplayAmount())
	assert.Equal(t, "1000", (&PaymentLink{Amount: 1000, Currency: "jpy"}).DisplayAmount())
	assert.Equal(t, "1.000", (&PaymentLink{Amount: 1000, Currency: "kwd"}).DisplayAmount())
}

func TestPaymentLink_CloneIsDeep(t *testing.T) {
	paidAt := time.Now()
	link := &PaymentLink{ID: "a", PaidAt: &paidAt}

	cp := link.Clone()
	*cp.PaidAt = paidAt.Add(time.Hour)
	cp.ID = "b"

	assert.Equal(t, "a", link.ID)
	assert.Equal(t, paidAt, *link.PaidAt)
	assert.Nil(t, (*PaymentLink)(nil).Clone())
}

func TestPaginationParams_Validate(t *testing.T) {
	p := PaginationParams{Page: 0, PerPage: 500}
	p.Validate()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PerPage)
	assert.Equal(t, 0, p.CalculateOffset())

	p = PaginationParams{Page: 3, PerPage: 0}
	p.Validate()
	assert.Equal(t, DefaultPageSize, p.PerPage)
	assert.Equal(t, 20, p.CalculateOffset())

	meta := NewPaginationMeta(1, 10, 21)
	assert.Equal(t, 3, meta.TotalPages)
}
