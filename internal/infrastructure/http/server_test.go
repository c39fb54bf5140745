package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/internal/infrastructure/database"
	httpServer "github.com/wekeepgrowing/paylink/internal/infrastructure/http"
	stripeProvider "github.com/wekeepgrowing/paylink/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/paylink/internal/usecase"
)

const testAdminSecret = "admin-secret"

func newTestServer(t *testing.T, adminSecret string, opts ...func(*config.Config)) http.Handler {
	t.Helper()

	cfg := config.Default()
	cfg.Service.Admin.JWTSecret = adminSecret
	for _, opt := range opts {
		opt(cfg)
	}
	repos := database.NewMemoryRepositories()
	checkout := stripeProvider.NewStripeProvider(stripeProvider.Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		BaseURL:       cfg.Service.BaseURL,
	}, zap.NewNop())
	links := usecase.NewLinkUsecase(repos.Link, checkout, nil, nil, usecase.LinkConfig{
		TTL:             cfg.Service.LinkTTL,
		CheckoutTimeout: cfg.Service.CheckoutTimeout,
		Currency:        cfg.Service.Stripe.Currency,
		SweepBatchSize:  cfg.Service.SweepBatchSize,
	}, zap.NewNop())

	server, err := httpServer.NewServer(cfg, zap.NewNop(), links, checkout, repos.Webhook)
	require.NoError(t, err)
	return server.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testAdminSecret))
	require.NoError(t, err)
	return signed
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, "")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"paylink"}`, rec.Body.String())
}

func TestServer_ContentSecurityPolicy(t *testing.T) {
	h := newTestServer(t, "")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/payment_cancelled?token=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Equal(t, httpServer.ContentSecurityPolicy, csp)
	assert.Contains(t, csp, "script-src 'self' https://js.stripe.com")
	assert.Contains(t, csp, "style-src 'self' 'unsafe-inline'")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_StrictTransportSecurity(t *testing.T) {
	request := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(echo.HeaderXForwardedProto, "https")
		return req
	}

	rec := serve(newTestServer(t, ""), request())
	assert.Empty(t, rec.Header().Get(echo.HeaderStrictTransportSecurity))

	production := newTestServer(t, "", func(cfg *config.Config) {
		cfg.Service.Environment = "production"
	})
	rec = serve(production, request())
	assert.Equal(t, "max-age=31536000; includeSubdomains", rec.Header().Get(echo.HeaderStrictTransportSecurity))
}

func TestServer_AdminRoutesRequireToken(t *testing.T) {
	h := newTestServer(t, testAdminSecret)

	for _, target := range []string{"/api/v1/links", "/api/v1/links/export"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)

		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "viewer"))
		rec = serve(h, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)

		req = httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
		rec = serve(h, req)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
}

func TestServer_AdminRoutesOpenWithoutSecret(t *testing.T) {
	h := newTestServer(t, "")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/links/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, strings.Join(usecase.ExportHeader, ","), strings.TrimSpace(rec.Body.String()))
}

func TestServer_PublicRoutesSkipAuth(t *testing.T) {
	h := newTestServer(t, testAdminSecret)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/links/unknown/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, "")
	serve(h, httptest.NewRequest(http.MethodGet, "/pay/unknown", nil))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paylink_requests_total")
}

func TestServer_Shutdown(t *testing.T) {
	cfg := config.Default()
	repos := database.NewMemoryRepositories()
	links := usecase.NewLinkUsecase(repos.Link, nil, nil, nil, usecase.LinkConfig{TTL: time.Minute}, zap.NewNop())

	server, err := httpServer.NewServer(cfg, zap.NewNop(), links, nil, repos.Webhook)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
