package event

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/pkg/messaging"
	"go.uber.org/zap"
)

// RedisPublisher publishes link events as JSON on a redis pub/sub channel
type RedisPublisher struct {
	client  messaging.RedisClient
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a new redis backed link event publisher
func NewRedisPublisher(client messaging.RedisClient, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// PublishLinkEvent publishes one event
func (p *RedisPublisher) PublishLinkEvent(ctx context.Context, event entity.LinkEvent) error {
	if err := p.client.Publish(ctx, p.channel, event); err != nil {
		return fmt.Errorf("failed to publish %s for link %s: %w", event.Type, event.LinkID, err)
	}

	p.logger.Debug("Link event published",
		zap.String("channel", p.channel),
		zap.String("type", string(event.Type)),
		zap.String("link_id", event.LinkID))
	return nil
}
