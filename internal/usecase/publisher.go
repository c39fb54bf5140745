package usecase

import (
	"context"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
)

// LinkEventPublisher announces stored lifecycle changes to other services.
type LinkEventPublisher interface {
	PublishLinkEvent(ctx context.Context, event entity.LinkEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishLinkEvent(context.Context, entity.LinkEvent) error {
	return nil
}
