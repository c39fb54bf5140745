package usecase

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
)

// ExportHeader is the first row of every CSV export.
var ExportHeader = []string{"id", "amount", "currency", "status", "created_at", "expires_at"}

// ExportCSV writes the matching links in creation order. Statuses are the
// effective statuses at export time; nothing is written back to the store.
func (u *LinkUsecase) ExportCSV(ctx context.Context, w io.Writer, filter entity.LinkFilter) (int, error) {
	if err := validateFilter(filter); err != nil {
		return 0, err
	}

	now := u.clock.Now()
	filter.Now = now
	links, err := u.links.ListForExport(ctx, filter)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to load payment links for export")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, apperrors.Wrap(err, "failed to write export header")
	}
	for _, link := range links {
		record := []string{
			link.ID,
			strconv.FormatInt(link.Amount, 10),
			link.Currency,
			link.EffectiveStatus(now).Label(),
			link.CreatedAt.UTC().Format(time.RFC3339),
			link.ExpiresAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return 0, apperrors.Wrap(err, "failed to write export row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, apperrors.Wrap(err, "failed to flush export")
	}
	return len(links), nil
}
