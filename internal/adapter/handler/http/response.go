package http

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
	"go.uber.org/zap"
)

// LinkResponse is the JSON shape of a payment link
type LinkResponse struct {
	ID                  string            `json:"id"`
	Token               string            `json:"token"`
	OrderID             string            `json:"order_id,omitempty"`
	Email               string            `json:"email,omitempty"`
	Amount              int64             `json:"amount"`
	DisplayAmount       string            `json:"display_amount"`
	Currency            string            `json:"currency"`
	Status              entity.LinkStatus `json:"status"`
	PayURL              string            `json:"pay_url"`
	CheckoutURL         string            `json:"checkout_url,omitempty"`
	ExternalSessionRef  string            `json:"external_session_ref,omitempty"`
	NeedsReconciliation bool              `json:"needs_reconciliation,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
	PaidAt              *time.Time        `json:"paid_at,omitempty"`
	ExpiredAt           *time.Time        `json:"expired_at,omitempty"`
}

// NewLinkResponse builds the response for a link. baseURL prefixes the pay page path.
func NewLinkResponse(link *entity.PaymentLink, baseURL string) LinkResponse {
	return LinkResponse{
		ID:                  link.ID,
		Token:               link.Token,
		OrderID:             link.OrderID,
		Email:               link.Email,
		Amount:              link.Amount,
		DisplayAmount:       link.DisplayAmount(),
		Currency:            link.Currency,
		Status:              link.Status,
		PayURL:              strings.TrimRight(baseURL, "/") + "/pay/" + link.Token,
		CheckoutURL:         link.CheckoutURL,
		ExternalSessionRef:  link.ExternalSessionRef,
		NeedsReconciliation: link.NeedsReconciliation,
		CreatedAt:           link.CreatedAt,
		ExpiresAt:           link.ExpiresAt,
		PaidAt:              link.PaidAt,
		ExpiredAt:           link.ExpiredAt,
	}
}

// httpError logs err once and converts it for echo's error handler
func httpError(logger *zap.Logger, c echo.Context, err error, msg string) error {
	apperrors.LogError(logger, err, msg,
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path))
	return apperrors.ToHTTPError(err)
}
