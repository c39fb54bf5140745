package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// LinkStatus is the lifecycle state of a payment link.
type LinkStatus string

const (
	LinkStatusPending LinkStatus = "pending"
	LinkStatusPaid    LinkStatus = "paid"
	LinkStatusExpired LinkStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s LinkStatus) IsTerminal() bool {
	return s == LinkStatusPaid || s == LinkStatusExpired
}

func (s LinkStatus) IsValid() bool {
	switch s {
	case LinkStatusPending, LinkStatusPaid, LinkStatusExpired:
		return true
	}
	return false
}

// Label is the capitalised form used in exports and pages.
func (s LinkStatus) Label() string {
	switch s {
	case LinkStatusPending:
		return "Pending"
	case LinkStatusPaid:
		return "Paid"
	case LinkStatusExpired:
		return "Expired"
	}
	return string(s)
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to LinkStatus) bool {
	return from == LinkStatusPending && to.IsTerminal()
}

// PaymentLink is a request for payment with a bounded validity window.
type PaymentLink struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	OrderID  string `json:"order_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`

	Status             LinkStatus `json:"status"`
	ExternalSessionRef string     `json:"external_session_ref,omitempty"`
	CheckoutURL        string     `json:"checkout_url,omitempty"`

	NeedsReconciliation bool       `json:"needs_reconciliation,omitempty"`
	ReconciliationRef   string     `json:"reconciliation_ref,omitempty"`
	ReconciliationAt    *time.Time `json:"reconciliation_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// IsOverdue reports whether the validity window has passed at now.
// A link is overdue only strictly after ExpiresAt.
func (l *PaymentLink) IsOverdue(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// EffectiveStatus is the status a reader should observe at now without
// persisting anything: an overdue pending link reads as expired.
func (l *PaymentLink) EffectiveStatus(now time.Time) LinkStatus {
	if l.Status == LinkStatusPending && l.IsOverdue(now) {
		return LinkStatusExpired
	}
	return l.Status
}

// DisplayAmount renders Amount in major units using the currency's standard
// minor unit digits, e.g. 1000 usd -> "10.00", 1000 jpy -> "1000".
func (l *PaymentLink) DisplayAmount() string {
	scale := int32(minorUnitDigits(l.Currency))
	return decimal.New(l.Amount, -scale).StringFixed(scale)
}

func minorUnitDigits(code string) int {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (l *PaymentLink) Clone() *PaymentLink {
	if l == nil {
		return nil
	}
	cp := *l
	cp.PaidAt = cloneTime(l.PaidAt)
	cp.ExpiredAt = cloneTime(l.ExpiredAt)
	cp.ReconciliationAt = cloneTime(l.ReconciliationAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StatusUpdate carries the fields written together with a status transition.
type StatusUpdate struct {
	At         time.Time
	SessionRef string
}

// LinkFilter narrows list and export queries. OrderID and Email match as
// substrings. Status matches the effective status at Now; a zero Now
// matches the stored status.
type LinkFilter struct {
	OrderID string
	Email   string
	Status  LinkStatus
	Now     time.Time
}
