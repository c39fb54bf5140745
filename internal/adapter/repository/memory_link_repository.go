package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/paylink/internal/domain/errors"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
)

// memoryLinkRepository keeps links in process memory. Every read returns a
// copy and every write happens under the mutex.
type memoryLinkRepository struct {
	mu      sync.RWMutex
	links   map[string]*entity.PaymentLink
	byToken map[string]string
	order   []string // creation order
}

// NewMemoryLinkRepository creates an in-memory link repository
func NewMemoryLinkRepository() repository.LinkRepository {
	return &memoryLinkRepository{
		links:   make(map[string]*entity.PaymentLink),
		byToken: make(map[string]string),
	}
}

func (r *memoryLinkRepository) Create(_ context.Context, link *entity.PaymentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.ID]; ok {
		return fmt.Errorf("payment link %s already exists", link.ID)
	}
	if _, ok := r.byToken[link.Token]; ok {
		return fmt.Errorf("payment link token %s already exists", link.Token)
	}

	r.links[link.ID] = link.Clone()
	r.byToken[link.Token] = link.ID
	r.order = append(r.order, link.ID)
	return nil
}

func (r *memoryLinkRepository) GetByID(_ context.Context, id string) (*entity.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[id]
	if !ok {
		return nil, domainErrors.ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (r *memoryLinkRepository) GetByToken(_ context.Context, token string) (*entity.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, domainErrors.ErrLinkNotFound
	}
	return r.links[id].Clone(), nil
}

func (r *memoryLinkRepository) CompareAndSetStatus(_ context.Context, id string, from, to entity.LinkStatus, update entity.StatusUpdate) (bool, error) {
	if !entity.CanTransition(from, to) {
		return false, fmt.Errorf("invalid transition %s -> %s", from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return false, domainErrors.ErrLinkNotFound
	}
	if link.Status != from {
		return false, nil
	}

	at := update.At.UTC()
	link.Status = to
	switch to {
	case entity.LinkStatusPaid:
		link.PaidAt = &at
		if update.SessionRef != "" {
			link.ExternalSessionRef = update.SessionRef
		}
	case entity.LinkStatusExpired:
		link.ExpiredAt = &at
	}
	return true, nil
}

func (r *memoryLinkRepository) FlagReconciliation(_ context.Context, id, ref string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return domainErrors.ErrLinkNotFound
	}
	at = at.UTC()
	link.NeedsReconciliation = true
	link.ReconciliationRef = ref
	link.ReconciliationAt = &at
	return nil
}

func (r *memoryLinkRepository) ListExpirable(_ context.Context, now time.Time, limit int) ([]*entity.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var links []*entity.PaymentLink
	for _, id := range r.order {
		link := r.links[id]
		if link.Status == entity.LinkStatusPending && link.ExpiresAt.Before(now) {
			links = append(links, link.Clone())
		}
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].ExpiresAt.Before(links[j].ExpiresAt)
	})
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (r *memoryLinkRepository) List(_ context.Context, filter entity.LinkFilter, limit, offset int) ([]*entity.PaymentLink, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.matching(filter)
	total := int64(len(matched))

	// newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if limit <= 0 {
		return matched, total, nil
	}
	if offset >= len(matched) {
		return []*entity.PaymentLink{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memoryLinkRepository) ListForExport(_ context.Context, filter entity.LinkFilter) ([]*entity.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.matching(filter), nil
}

// matching must be called with the lock held. Results are in creation order.
func (r *memoryLinkRepository) matching(filter entity.LinkFilter) []*entity.PaymentLink {
	links := make([]*entity.PaymentLink, 0, len(r.order))
	for _, id := range r.order {
		link := r.links[id]
		if filter.OrderID != "" && !strings.Contains(link.OrderID, filter.OrderID) {
			continue
		}
		if filter.Email != "" && !strings.Contains(strings.ToLower(link.Email), strings.ToLower(filter.Email)) {
			continue
		}
		if filter.Status != "" && link.EffectiveStatus(filter.Now) != filter.Status {
			continue
		}
		links = append(links, link.Clone())
	}
	return links
}
