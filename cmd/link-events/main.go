// Command link-events follows the link lifecycle channel and logs each event.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/wekeepgrowing/paylink/internal/config"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/pkg/logger"
	"github.com/wekeepgrowing/paylink/pkg/messaging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.DefaultZapLogger().Fatal("Failed to load config", zap.Error(err))
	}

	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		logger.DefaultZapLogger().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewRedisClient(ctx, messaging.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer client.Close()

	messages, err := client.Subscribe(ctx, cfg.Redis.Channel)
	if err != nil {
		zapLogger.Fatal("Failed to subscribe", zap.String("channel", cfg.Redis.Channel), zap.Error(err))
	}
	zapLogger.Info("Listening for link events", zap.String("channel", cfg.Redis.Channel))

	for msg := range messages {
		var event entity.LinkEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			zapLogger.Warn("Skipping malformed link event", zap.ByteString("payload", msg.Payload), zap.Error(err))
			continue
		}

		fields := []zap.Field{
			zap.String("type", string(event.Type)),
			zap.String("link_id", event.LinkID),
			zap.String("status", string(event.Status)),
			zap.Int64("amount", event.Amount),
			zap.String("currency", event.Currency),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if event.SessionRef != "" {
			fields = append(fields, zap.String("session_ref", event.SessionRef))
		}

		if event.Type == entity.LinkEventPaymentConflict {
			zapLogger.Warn("Payment received after expiry, reconcile manually", fields...)
			continue
		}
		zapLogger.Info("Link event", fields...)
	}

	zapLogger.Info("Stopped listening for link events")
}
