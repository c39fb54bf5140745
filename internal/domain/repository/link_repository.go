package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
)

// LinkRepository is the record store for payment links. Implementations
// return errors.ErrLinkNotFound for unknown ids and tokens.
type LinkRepository interface {
	Create(ctx context.Context, link *entity.PaymentLink) error
	GetByID(ctx context.Context, id string) (*entity.PaymentLink, error)
	GetByToken(ctx context.Context, token string) (*entity.PaymentLink, error)

	// CompareAndSetStatus moves the link from one status to another only if
	// the stored status still equals from. It reports whether the write won.
	// Paid transitions record update.At as paid_at and update.SessionRef as the
	// external session reference; expired transitions record expired_at.
	CompareAndSetStatus(ctx context.Context, id string, from, to entity.LinkStatus, update entity.StatusUpdate) (bool, error)

	// FlagReconciliation marks a link whose payment arrived after expiry.
	FlagReconciliation(ctx context.Context, id, ref string, at time.Time) error

	// ListExpirable returns pending links whose expires_at is before now.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*entity.PaymentLink, error)

	// List returns links newest first along with the total matching count.
	List(ctx context.Context, filter entity.LinkFilter, limit, offset int) ([]*entity.PaymentLink, int64, error)

	// ListForExport returns every matching link in creation order.
	ListForExport(ctx context.Context, filter entity.LinkFilter) ([]*entity.PaymentLink, error)
}
