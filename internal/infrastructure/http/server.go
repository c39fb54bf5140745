package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	handlers "github.com/wekeepgrowing/paylink/internal/adapter/handler/http"
	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"github.com/wekeepgrowing/paylink/internal/middleware/auth"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	"github.com/wekeepgrowing/paylink/pkg/logger"
	"go.uber.org/zap"
)

// hstsMaxAge is one year, sent only in production
const hstsMaxAge = 31536000

var (
	scriptSources = []string{"'self'", "https://js.stripe.com", "https://cdn.jsdelivr.net", "https://code.jquery.com"}
	styleSources  = []string{"'self'", "'unsafe-inline'", "https://cdn.jsdelivr.net", "https://fonts.googleapis.com"}
	fontSources   = []string{"'self'", "https://js.stripe.com", "https://cdn.jsdelivr.net", "https://fonts.gstatic.com", "data:"}
	imgSources    = []string{"'self'", "data:"}
)

// ContentSecurityPolicy is sent on every response
var ContentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src " + strings.Join(scriptSources, " "),
	"style-src " + strings.Join(styleSources, " "),
	"font-src " + strings.Join(fontSources, " "),
	"img-src " + strings.Join(imgSources, " "),
}, "; ") + ";"

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	registry *prometheus.Registry

	links    *usecase.LinkUsecase
	provider provider.CheckoutProvider
	webhooks repository.WebhookRepository
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	links *usecase.LinkUsecase,
	checkoutProvider provider.CheckoutProvider,
	webhooks repository.WebhookRepository,
) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	renderer, err := handlers.NewTemplateRenderer()
	if err != nil {
		return nil, err
	}
	e.Renderer = renderer
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	registry := prometheus.NewRegistry()

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	secureConfig := middleware.SecureConfig{
		XSSProtection:         middleware.DefaultSecureConfig.XSSProtection,
		ContentTypeNosniff:    middleware.DefaultSecureConfig.ContentTypeNosniff,
		XFrameOptions:         middleware.DefaultSecureConfig.XFrameOptions,
		ContentSecurityPolicy: ContentSecurityPolicy,
	}
	if cfg.Service.IsProduction() {
		secureConfig.HSTSMaxAge = hstsMaxAge
	}
	e.Use(middleware.SecureWithConfig(secureConfig))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.HTTP.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "paylink",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		registry: registry,
		links:    links,
		provider: checkoutProvider,
		webhooks: webhooks,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Addr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})
	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.registry,
	}))

	linkHandler := handlers.NewLinkHandler(s.links, s.config.Service.BaseURL, s.logger)
	pageHandler := handlers.NewPageHandler(s.links, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.links, s.provider, s.webhooks, s.logger)

	if s.config.Service.Admin.JWTSecret == "" {
		s.logger.Warn("Admin JWT secret is not set, payment list and export are unauthenticated")
	}
	adminAuth := auth.JWTMiddleware(auth.JWTConfig{
		Secret: s.config.Service.Admin.JWTSecret,
		Logger: s.logger,
	})

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/links", linkHandler.CreateLink)
	v1.GET("/links/:id", linkHandler.GetLink)
	v1.GET("/links/:id/status", linkHandler.GetStatus)

	// Admin routes
	v1.GET("/links", linkHandler.ListLinks, adminAuth)
	v1.GET("/links/export", linkHandler.ExportCSV, adminAuth)

	// Customer pages
	s.echo.GET("/pay/:token", pageHandler.PayPage)
	s.echo.POST("/pay/:token/checkout", pageHandler.Checkout)
	s.echo.GET("/payment_success", pageHandler.PaymentSuccess)
	s.echo.GET("/payment_cancelled", pageHandler.PaymentCancelled)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
