package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	handler "github.com/wekeepgrowing/paylink/internal/adapter/handler/http"
	adapterRepo "github.com/wekeepgrowing/paylink/internal/adapter/repository"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	"github.com/wekeepgrowing/paylink/pkg/logger"
)

const testBaseURL = "http://pay.example.com"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockCheckoutProvider is a mock implementation of CheckoutProvider
type MockCheckoutProvider struct {
	mock.Mock
}

func (m *MockCheckoutProvider) CreateSession(ctx context.Context, req *provider.CreateSessionRequest) (*provider.Session, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, *provider.CreateSessionRequest) *provider.Session); ok {
		return fn(ctx, req), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Session), args.Error(1)
}

func (m *MockCheckoutProvider) GetSession(ctx context.Context, sessionID string) (*provider.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Session), args.Error(1)
}

func (m *MockCheckoutProvider) ExpireSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockCheckoutProvider) HandleWebhook(ctx context.Context, payload []byte, signature string) (*provider.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}

func (m *MockCheckoutProvider) GetProviderName() string {
	return string(provider.ProviderTypeStripe)
}

type testEnv struct {
	echo     *echo.Echo
	clock    *fakeClock
	provider *MockCheckoutProvider
	links    repository.LinkRepository
	webhooks repository.WebhookRepository
	usecase  *usecase.LinkUsecase
}

// newTestEnv wires the handlers onto echo the way the server does, minus
// auth and metrics. Options run before the usecase is built.
func newTestEnv(t *testing.T, opts ...func(*testEnv)) *testEnv {
	t.Helper()

	log := zap.NewNop()
	env := &testEnv{
		echo:     echo.New(),
		clock:    &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		provider: new(MockCheckoutProvider),
		links:    adapterRepo.NewMemoryLinkRepository(),
		webhooks: adapterRepo.NewMemoryWebhookRepository(),
	}
	for _, opt := range opts {
		opt(env)
	}
	env.usecase = usecase.NewLinkUsecase(env.links, env.provider, nil, env.clock, usecase.LinkConfig{
		TTL:             5 * time.Minute,
		CheckoutTimeout: time.Second,
		Currency:        "usd",
		SweepBatchSize:  10,
	}, log)

	renderer, err := handler.NewTemplateRenderer()
	require.NoError(t, err)

	e := env.echo
	logger.WithEchoLogger(e, log)
	e.Validator = handler.NewRequestValidator()
	e.Renderer = renderer

	links := handler.NewLinkHandler(env.usecase, testBaseURL, log)
	pages := handler.NewPageHandler(env.usecase, log)
	webhooks := handler.NewWebhookHandler(env.usecase, env.provider, env.webhooks, log)

	api := e.Group("/api/v1")
	api.POST("/links", links.CreateLink)
	api.GET("/links/:id", links.GetLink)
	api.GET("/links/:id/status", links.GetStatus)
	api.GET("/links", links.ListLinks)
	api.GET("/links/export", links.ExportCSV)

	e.POST("/webhook", webhooks.HandleWebhook)
	e.GET("/pay/:token", pages.PayPage)
	e.POST("/pay/:token/checkout", pages.Checkout)
	e.GET("/payment_success", pages.PaymentSuccess)
	e.GET("/payment_cancelled", pages.PaymentCancelled)

	return env
}

func (env *testEnv) do(method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postJSON(target, body string) *httptest.ResponseRecorder {
	return env.do(http.MethodPost, target, strings.NewReader(body),
		map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
}

// expectSession makes the next CreateSession return a session for the
// requested link.
func (env *testEnv) expectSession(sessionID string) {
	env.provider.On("CreateSession", mock.Anything, mock.AnythingOfType("*provider.CreateSessionRequest")).
		Return(func(_ context.Context, req *provider.CreateSessionRequest) *provider.Session {
			return &provider.Session{
				ID:     sessionID,
				URL:    "https://checkout.stripe.com/c/pay/" + sessionID,
				LinkID: req.LinkID,
				Status: "open",
			}
		}, nil).Once()
}

func (env *testEnv) createLink(t *testing.T, sessionID string, input usecase.CreateLinkInput) *entity.PaymentLink {
	t.Helper()
	env.expectSession(sessionID)
	link, err := env.usecase.CreateLink(context.Background(), input)
	require.NoError(t, err)
	return link
}
