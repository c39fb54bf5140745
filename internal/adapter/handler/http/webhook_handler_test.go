package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	handler "github.com/wekeepgrowing/paylink/internal/adapter/handler/http"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/internal/domain/model"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	stripeProvider "github.com/wekeepgrowing/paylink/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/paylink/internal/usecase"
)

const testWebhookSecret = "whsec_test_secret"

func (env *testEnv) postWebhook(body []byte, signature string) *httptest.ResponseRecorder {
	return env.do(http.MethodPost, "/webhook", bytes.NewReader(body),
		map[string]string{"Stripe-Signature": signature})
}

func (env *testEnv) expectWebhook(body []byte, event *provider.WebhookEvent) {
	env.provider.On("HandleWebhook", mock.Anything, body, "sig").Return(event, nil)
}

func paidEvent(eventID string, link *entity.PaymentLink) *provider.WebhookEvent {
	return &provider.WebhookEvent{
		EventID:   eventID,
		EventType: provider.EventCheckoutCompleted,
		Session: &provider.Session{
			ID:            link.ExternalSessionRef,
			LinkID:        link.ID,
			Status:        "complete",
			PaymentStatus: provider.PaymentStatusPaid,
		},
	}
}

func (env *testEnv) storedEvent(t *testing.T, eventID string) *model.StripeWebhookEvent {
	t.Helper()
	event, err := env.webhooks.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, event)
	return event
}

func TestWebhookHandler_CheckoutCompleted(t *testing.T) {
	env := newTestEnv(t)
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})
	body := []byte(`{"id":"evt_1"}`)
	env.expectWebhook(body, paidEvent("evt_1", link))

	rec := env.postWebhook(body, "sig")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status, err := env.usecase.GetStatus(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPaid, status)
	assert.Equal(t, model.WebhookStatusCompleted, env.storedEvent(t, "evt_1").Status)
}

func TestWebhookHandler_DuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})
	body := []byte(`{"id":"evt_1"}`)
	env.expectWebhook(body, paidEvent("evt_1", link))

	first := env.postWebhook(body, "sig")
	second := env.postWebhook(body, "sig")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)

	stored, err := env.links.GetByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPaid, stored.Status)
	assert.Equal(t, "cs_test_1", stored.ExternalSessionRef)
}

func TestWebhookHandler_UnpaidSessionIgnored(t *testing.T) {
	env := newTestEnv(t)
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})
	event := paidEvent("evt_1", link)
	event.Session.PaymentStatus = provider.PaymentStatusUnpaid
	body := []byte(`{"id":"evt_1"}`)
	env.expectWebhook(body, event)

	rec := env.postWebhook(body, "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	status, err := env.usecase.GetStatus(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPending, status)
}

func TestWebhookHandler_PaymentAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})
	env.clock.Advance(6 * time.Minute)
	status, err := env.usecase.GetStatus(context.Background(), link.ID)
	require.NoError(t, err)
	require.Equal(t, entity.LinkStatusExpired, status)

	body := []byte(`{"id":"evt_late"}`)
	env.expectWebhook(body, paidEvent("evt_late", link))

	rec := env.postWebhook(body, "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	stored, err := env.links.GetByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusExpired, stored.Status)
	assert.True(t, stored.NeedsReconciliation)
	assert.Equal(t, model.WebhookStatusCompleted, env.storedEvent(t, "evt_late").Status)
}

func TestWebhookHandler_UnknownLink(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"id":"evt_1"}`)
	env.expectWebhook(body, paidEvent("evt_1", &entity.PaymentLink{ID: "missing", ExternalSessionRef: "cs_x"}))

	rec := env.postWebhook(body, "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"id":"evt_1"}`)
	env.provider.On("HandleWebhook", mock.Anything, body, "bad").
		Return(nil, &provider.ProviderError{Code: provider.ErrCodeInvalidSignature, Message: "webhook signature verification failed"})

	rec := env.postWebhook(body, "bad")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	event, err := env.webhooks.GetEvent(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	body := bytes.Repeat([]byte("a"), handler.MaxWebhookBodyBytes+1)

	rec := env.postWebhook(body, "sig")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env.provider.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

// failingLinkRepository fails every status transition
type failingLinkRepository struct {
	repository.LinkRepository
}

func (r failingLinkRepository) CompareAndSetStatus(context.Context, string, entity.LinkStatus, entity.LinkStatus, entity.StatusUpdate) (bool, error) {
	return false, errors.New("database is locked")
}

func TestWebhookHandler_TransientFailureIsRetried(t *testing.T) {
	env := newTestEnv(t, func(env *testEnv) {
		env.links = failingLinkRepository{LinkRepository: env.links}
	})
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})
	body := []byte(`{"id":"evt_1"}`)
	env.expectWebhook(body, paidEvent("evt_1", link))

	rec := env.postWebhook(body, "sig")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	stored := env.storedEvent(t, "evt_1")
	assert.Equal(t, model.WebhookStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.ProcessingAttempts)

	rec = env.postWebhook(body, "sig")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 2, env.storedEvent(t, "evt_1").ProcessingAttempts)
}

func TestWebhookHandler_SignedStripePayload(t *testing.T) {
	env := newTestEnv(t)
	link := env.createLink(t, "cs_test_1", usecase.CreateLinkInput{Amount: 1000})

	stripeWebhooks := handler.NewWebhookHandler(
		env.usecase,
		stripeProvider.NewStripeProvider(stripeProvider.Config{
			SecretKey:     "sk_test_123",
			WebhookSecret: testWebhookSecret,
		}, zap.NewNop()),
		env.webhooks,
		zap.NewNop(),
	)
	env.echo.POST("/stripe/webhook", stripeWebhooks.HandleWebhook)

	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_signed",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2020-08-27",
		"created":     time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":                  "cs_test_1",
				"object":              "checkout.session",
				"client_reference_id": link.ID,
				"payment_status":      "paid",
				"status":              "complete",
				"amount_total":        1000,
				"currency":            "usd",
			},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	rec := env.do(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload),
		map[string]string{"Stripe-Signature": signed.Header})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status, err := env.usecase.GetStatus(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LinkStatusPaid, status)

	tampered := strings.Replace(string(payload), `"amount_total":1000`, `"amount_total":1`, 1)
	rec = env.do(http.MethodPost, "/stripe/webhook", strings.NewReader(tampered),
		map[string]string{"Stripe-Signature": signed.Header})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
