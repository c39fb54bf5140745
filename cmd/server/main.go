package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/wekeepgrowing/paylink/internal/adapter/event"
	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/paylink/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/paylink/internal/infrastructure/http"
	providerFactory "github.com/wekeepgrowing/paylink/internal/infrastructure/provider"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	"github.com/wekeepgrowing/paylink/pkg/logger"
	"github.com/wekeepgrowing/paylink/pkg/messaging"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.DefaultZapLogger().Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		logger.DefaultZapLogger().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer zapLogger.Sync()
	zapLogger = zapLogger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("env", cfg.Service.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var repos *database.Repositories
	if cfg.Database.Driver == config.DriverMemory {
		zapLogger.Warn("Using in-memory storage, payment links are lost on restart")
		repos = database.NewMemoryRepositories()
	} else {
		db, err := database.NewConnection(&cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db, zapLogger); err != nil {
				zapLogger.Error("Failed to close database connection", zap.Error(err))
			}
		}()

		if err := database.Migrate(db, zapLogger); err != nil {
			zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
		}
		repos = database.NewRepositories(db, zapLogger)
	}

	// Initialize checkout provider
	checkoutProvider, err := providerFactory.NewFactory(cfg, zapLogger).GetProvider(provider.ProviderTypeStripe)
	if err != nil {
		zapLogger.Fatal("Failed to initialize checkout provider", zap.Error(err))
	}

	// Link events are optional
	var publisher usecase.LinkEventPublisher
	if cfg.Redis.Enabled {
		redisClient, err := messaging.NewRedisClient(ctx, messaging.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		publisher = event.NewRedisPublisher(redisClient, cfg.Redis.Channel, zapLogger)
		zapLogger.Info("Publishing link events", zap.String("channel", cfg.Redis.Channel))
	}

	links := usecase.NewLinkUsecase(repos.Link, checkoutProvider, publisher, usecase.SystemClock{}, usecase.LinkConfig{
		TTL:             cfg.Service.LinkTTL,
		CheckoutTimeout: cfg.Service.CheckoutTimeout,
		Currency:        cfg.Service.Stripe.Currency,
		SweepBatchSize:  cfg.Service.SweepBatchSize,
	}, zapLogger)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		usecase.NewLinkSweeper(links, cfg.Service.SweepInterval, zapLogger).Run(ctx)
	}()

	// Initialize servers
	httpSrv, err := httpServer.NewServer(cfg, zapLogger, links, checkoutProvider, repos.Webhook)
	if err != nil {
		zapLogger.Fatal("Failed to initialize HTTP server", zap.Error(err))
	}

	var grpcSrv *grpcServer.Server
	if cfg.Server.GRPC.Enabled {
		grpcSrv = grpcServer.NewServer(&cfg.Server.GRPC, zapLogger)
		go func() {
			if err := grpcSrv.Start(); err != nil {
				zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	zapLogger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
		}
	}
	<-sweeperDone

	zapLogger.Info("Servers shut down successfully")
}
