package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/paylink/internal/domain/errors"
	"github.com/wekeepgrowing/paylink/internal/domain/model"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type linkRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLinkRepository creates a GORM backed link repository
func NewLinkRepository(db *gorm.DB, logger *zap.Logger) repository.LinkRepository {
	return &linkRepository{
		db:     db,
		logger: logger,
	}
}

func (r *linkRepository) Create(ctx context.Context, link *entity.PaymentLink) error {
	row := model.PaymentLinkFromEntity(link)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.logger.Error("Failed to create payment link",
			zap.String("link_id", link.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment link: %w", err)
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*entity.PaymentLink, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *linkRepository) GetByToken(ctx context.Context, token string) (*entity.PaymentLink, error) {
	return r.first(ctx, "token = ?", token)
}

func (r *linkRepository) first(ctx context.Context, query string, arg string) (*entity.PaymentLink, error) {
	var row model.PaymentLink
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get payment link: %w", err)
	}
	return row.ToEntity(), nil
}

func (r *linkRepository) CompareAndSetStatus(ctx context.Context, id string, from, to entity.LinkStatus, update entity.StatusUpdate) (bool, error) {
	if !entity.CanTransition(from, to) {
		return false, fmt.Errorf("invalid transition %s -> %s", from, to)
	}

	at := update.At.UTC()
	values := map[string]interface{}{
		"status":     string(to),
		"updated_at": at,
	}
	switch to {
	case entity.LinkStatusPaid:
		values["paid_at"] = at
		if update.SessionRef != "" {
			values["external_session_ref"] = update.SessionRef
		}
	case entity.LinkStatusExpired:
		values["expired_at"] = at
	}

	// The status predicate makes the update a single atomic compare-and-set.
	result := r.db.WithContext(ctx).
		Model(&model.PaymentLink{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(values)
	if result.Error != nil {
		r.logger.Error("Failed to update payment link status",
			zap.String("link_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update payment link status: %w", result.Error)
	}

	if result.RowsAffected == 1 {
		return true, nil
	}

	// Distinguish a lost race from an unknown id.
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.PaymentLink{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check payment link: %w", err)
	}
	if count == 0 {
		return false, domainErrors.ErrLinkNotFound
	}
	return false, nil
}

func (r *linkRepository) FlagReconciliation(ctx context.Context, id, ref string, at time.Time) error {
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&model.PaymentLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"needs_reconciliation": true,
			"reconciliation_ref":   ref,
			"reconciliation_at":    at,
			"updated_at":           at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to flag payment link for reconciliation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*entity.PaymentLink, error) {
	var rows []*model.PaymentLink
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(entity.LinkStatusPending), now.UTC()).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list expirable payment links: %w", err)
	}
	return toEntities(rows), nil
}

func (r *linkRepository) List(ctx context.Context, filter entity.LinkFilter, limit, offset int) ([]*entity.PaymentLink, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Model(&model.PaymentLink{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payment links: %w", err)
	}

	var rows []*model.PaymentLink
	query := r.filtered(ctx, filter).Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payment links: %w", err)
	}
	return toEntities(rows), total, nil
}

func (r *linkRepository) ListForExport(ctx context.Context, filter entity.LinkFilter) ([]*entity.PaymentLink, error) {
	var rows []*model.PaymentLink
	if err := r.filtered(ctx, filter).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment links for export: %w", err)
	}
	return toEntities(rows), nil
}

func (r *linkRepository) filtered(ctx context.Context, filter entity.LinkFilter) *gorm.DB {
	query := r.db.WithContext(ctx)
	if filter.OrderID != "" {
		query = query.Where("order_id LIKE ?", likePattern(filter.OrderID))
	}
	if filter.Email != "" {
		query = query.Where("LOWER(email) LIKE ?", likePattern(strings.ToLower(filter.Email)))
	}
	now := filter.Now.UTC()
	switch filter.Status {
	case entity.LinkStatusPending:
		query = query.Where("status = ? AND expires_at >= ?", string(entity.LinkStatusPending), now)
	case entity.LinkStatusExpired:
		query = query.Where("(status = ? OR (status = ? AND expires_at < ?))",
			string(entity.LinkStatusExpired), string(entity.LinkStatusPending), now)
	case "":
	default:
		query = query.Where("status = ?", string(filter.Status))
	}
	return query
}

func likePattern(s string) string {
	s = strings.NewReplacer("%", "", "_", "").Replace(s)
	return "%" + s + "%"
}

func toEntities(rows []*model.PaymentLink) []*entity.PaymentLink {
	links := make([]*entity.PaymentLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.ToEntity())
	}
	return links
}
