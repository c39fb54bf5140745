package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
	"go.uber.org/zap"
)

const pageTimeLayout = "2006-01-02 15:04 MST"

// PageHandler serves the customer facing pages of a payment link
type PageHandler struct {
	usecase *usecase.LinkUsecase
	logger  *zap.Logger
}

func NewPageHandler(usecase *usecase.LinkUsecase, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		usecase: usecase,
		logger:  logger,
	}
}

type pageData struct {
	Title        string
	Message      string
	Token        string
	OrderID      string
	Email        string
	Amount       string
	Currency     string
	ExpiresAt    string
	ExpiresAtISO string
}

func newPageData(link *entity.PaymentLink) pageData {
	return pageData{
		Token:        link.Token,
		OrderID:      link.OrderID,
		Email:        link.Email,
		Amount:       link.DisplayAmount(),
		Currency:     strings.ToUpper(link.Currency),
		ExpiresAt:    link.ExpiresAt.UTC().Format(pageTimeLayout),
		ExpiresAtISO: link.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// PayPage shows the payment page, or the paid or expired page once the
// link has settled.
func (h *PageHandler) PayPage(c echo.Context) error {
	link, err := h.usecase.GetLinkByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return h.renderError(c, err, "Failed to load payment page")
	}
	return h.renderLink(c, link)
}

// Checkout sends the customer to the hosted checkout page
func (h *PageHandler) Checkout(c echo.Context) error {
	link, err := h.usecase.BeginCheckout(c.Request().Context(), c.Param("token"))
	if apperrors.CodeOf(err) == apperrors.ErrConflict && link != nil {
		return h.renderLink(c, link)
	}
	if err != nil {
		return h.renderError(c, err, "Failed to begin checkout")
	}
	if link.CheckoutURL == "" {
		h.logger.Error("Payment link has no checkout URL", zap.String("link_id", link.ID))
		return h.renderMessage(c, http.StatusBadGateway, "Checkout unavailable", "Please try again later.")
	}
	return c.Redirect(http.StatusSeeOther, link.CheckoutURL)
}

// PaymentSuccess confirms the returning session with the provider
func (h *PageHandler) PaymentSuccess(c echo.Context) error {
	token := c.QueryParam("token")
	sessionID := c.QueryParam("session_id")
	if token == "" || sessionID == "" {
		return h.renderMessage(c, http.StatusBadRequest, "Invalid request", "The payment reference is missing.")
	}

	link, err := h.usecase.ConfirmCheckout(c.Request().Context(), token, sessionID)
	if apperrors.CodeOf(err) == apperrors.ErrConflict {
		// Paid after expiry. The link is flagged; show the customer its state.
		h.logger.Warn("Checkout confirmed for a link that is no longer payable",
			zap.String("token", token),
			zap.String("session_id", sessionID),
			zap.Error(err))
		link, err = h.usecase.GetLinkByToken(c.Request().Context(), token)
	}
	if err != nil {
		return h.renderError(c, err, "Failed to confirm checkout")
	}

	if link.Status == entity.LinkStatusPaid {
		return c.Render(http.StatusOK, PageSuccess, newPageData(link))
	}
	return h.renderLink(c, link)
}

func (h *PageHandler) PaymentCancelled(c echo.Context) error {
	return c.Render(http.StatusOK, PageCancelled, pageData{Token: c.QueryParam("token")})
}

func (h *PageHandler) renderLink(c echo.Context, link *entity.PaymentLink) error {
	data := newPageData(link)
	switch link.Status {
	case entity.LinkStatusPaid:
		return c.Render(http.StatusOK, PagePaid, data)
	case entity.LinkStatusExpired:
		return c.Render(http.StatusGone, PageExpired, data)
	default:
		return c.Render(http.StatusOK, PagePay, data)
	}
}

func (h *PageHandler) renderError(c echo.Context, err error, msg string) error {
	apperrors.LogError(h.logger, err, msg, zap.String("path", c.Request().URL.Path))

	code := apperrors.CodeOf(err)
	switch code {
	case apperrors.ErrNotFound:
		return h.renderMessage(c, http.StatusNotFound, "Payment link not found", "Check the link you were given.")
	case apperrors.ErrInvalidArgument:
		return h.renderMessage(c, http.StatusBadRequest, "Invalid request", apperrors.ToHTTPError(err).Message.(string))
	case apperrors.ErrUpstream:
		return h.renderMessage(c, http.StatusBadGateway, "Payment provider unavailable", "Please try again in a few minutes.")
	}
	return h.renderMessage(c, apperrors.ToHTTPStatus(code), "Something went wrong", "Please try again later.")
}

func (h *PageHandler) renderMessage(c echo.Context, status int, title, message string) error {
	return c.Render(status, PageMessage, pageData{Title: title, Message: message})
}
