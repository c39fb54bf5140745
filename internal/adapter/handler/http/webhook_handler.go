package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
	"go.uber.org/zap"
)

// MaxWebhookBodyBytes caps the webhook request body
const MaxWebhookBodyBytes = 64 << 10

type WebhookHandler struct {
	usecase  *usecase.LinkUsecase
	provider provider.CheckoutProvider
	webhooks repository.WebhookRepository
	logger   *zap.Logger
}

func NewWebhookHandler(
	usecase *usecase.LinkUsecase,
	checkoutProvider provider.CheckoutProvider,
	webhooks repository.WebhookRepository,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		usecase:  usecase,
		provider: checkoutProvider,
		webhooks: webhooks,
		logger:   logger,
	}
}

// HandleWebhook verifies a delivery, stores it once and applies paid
// checkout sessions. Deliveries that can never succeed are acknowledged so
// the provider stops retrying; transient failures return 500.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxWebhookBodyBytes+1))
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}
	if len(body) > MaxWebhookBodyBytes {
		h.logger.Warn("Webhook body too large")
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "Request body too large"})
	}

	event, err := h.provider.HandleWebhook(ctx, body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Webhook verification failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Webhook signature verification failed"})
	}

	log := h.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType))
	log.Info("Webhook event received")

	inserted, err := h.webhooks.SaveEvent(ctx, event.EventID, event.EventType, body)
	if err != nil {
		log.Error("Failed to store webhook event", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to store webhook event"})
	}
	if !inserted {
		stored, err := h.webhooks.GetEvent(ctx, event.EventID)
		if err == nil && stored != nil && stored.IsCompleted() {
			log.Info("Webhook event already processed")
			return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
		}
	}

	if err := h.process(ctx, event, log); err != nil {
		if markErr := h.webhooks.MarkFailed(ctx, event.EventID, err); markErr != nil {
			log.Error("Failed to mark webhook event failed", zap.Error(markErr))
		}
		apperrors.LogError(log, err, "Failed to process webhook event")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process webhook event"})
	}

	if err := h.webhooks.MarkProcessed(ctx, event.EventID); err != nil {
		log.Error("Failed to mark webhook event processed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) process(ctx context.Context, event *provider.WebhookEvent, log *zap.Logger) error {
	switch event.EventType {
	case provider.EventCheckoutCompleted, provider.EventCheckoutAsyncPaymentSucceeded:
		session := event.Session
		if session == nil || session.LinkID == "" {
			log.Warn("Checkout session without payment link reference")
			return nil
		}
		if !session.IsPaid() {
			log.Info("Checkout session not paid yet",
				zap.String("session_id", session.ID),
				zap.String("payment_status", string(session.PaymentStatus)))
			return nil
		}

		_, err := h.usecase.MarkPaid(ctx, session.LinkID, session.ID)
		switch apperrors.CodeOf(err) {
		case apperrors.ErrNotFound, apperrors.ErrConflict:
			// Redelivery cannot change the outcome.
			apperrors.LogError(log, err, "Payment confirmation not applied",
				zap.String("link_id", session.LinkID),
				zap.String("session_id", session.ID))
			return nil
		}
		return err

	case provider.EventCheckoutExpired:
		if event.Session != nil {
			log.Info("Checkout session expired at provider",
				zap.String("session_id", event.Session.ID),
				zap.String("link_id", event.Session.LinkID))
		}
		return nil

	default:
		log.Debug("Unhandled webhook event type")
		return nil
	}
}
