package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/paylink/internal/domain/errors"
	"github.com/wekeepgrowing/paylink/internal/domain/provider"
	"github.com/wekeepgrowing/paylink/internal/domain/repository"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
	"go.uber.org/zap"
)

const (
	tokenLength = 24
	// MaxAmount is the largest amount Stripe accepts for a single charge in
	// two-decimal currencies.
	MaxAmount int64 = 99_999_999
)

// LinkConfig holds the lifecycle settings of the manager.
type LinkConfig struct {
	TTL             time.Duration
	CheckoutTimeout time.Duration
	Currency        string
	SweepBatchSize  int
}

// CreateLinkInput is the request to create a payment link. Currency may be
// empty, in which case the configured currency is used.
type CreateLinkInput struct {
	Amount   int64
	Currency string
	OrderID  string
	Email    string
}

// LinkUsecase owns payment link records and enforces their lifecycle:
// pending moves to paid or expired exactly once and never changes again.
type LinkUsecase struct {
	links     repository.LinkRepository
	provider  provider.CheckoutProvider
	publisher LinkEventPublisher
	clock     Clock
	config    LinkConfig
	logger    *zap.Logger
}

func NewLinkUsecase(
	links repository.LinkRepository,
	checkoutProvider provider.CheckoutProvider,
	publisher LinkEventPublisher,
	clock Clock,
	config LinkConfig,
	logger *zap.Logger,
) *LinkUsecase {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &LinkUsecase{
		links:     links,
		provider:  checkoutProvider,
		publisher: publisher,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// CreateLink requests a hosted checkout session and stores a pending link.
// Nothing is stored when the provider fails.
func (u *LinkUsecase) CreateLink(ctx context.Context, input CreateLinkInput) (*entity.PaymentLink, error) {
	currency, err := u.validateCreate(input)
	if err != nil {
		return nil, err
	}

	token, err := gonanoid.New(tokenLength)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate link token")
	}

	now := u.clock.Now()
	link := &entity.PaymentLink{
		ID:        uuid.NewString(),
		Token:     token,
		OrderID:   strings.TrimSpace(input.OrderID),
		Email:     strings.TrimSpace(input.Email),
		Amount:    input.Amount,
		Currency:  currency,
		Status:    entity.LinkStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(u.config.TTL),
	}

	session, err := u.createSession(ctx, link)
	if err != nil {
		u.logger.Error("Failed to create checkout session",
			zap.String("link_id", link.ID),
			zap.Int64("amount", link.Amount),
			zap.Error(err))
		return nil, apperrors.Upstream("checkout provider unavailable", domainErrors.NewUpstreamError("create_session", err))
	}
	link.ExternalSessionRef = session.ID
	link.CheckoutURL = session.URL

	if err := u.links.Create(ctx, link); err != nil {
		u.expireSession(ctx, link)
		return nil, apperrors.Wrap(err, "failed to store payment link")
	}

	u.logger.Info("Payment link created",
		zap.String("link_id", link.ID),
		zap.String("session_id", link.ExternalSessionRef),
		zap.Int64("amount", link.Amount),
		zap.String("currency", link.Currency),
		zap.Time("expires_at", link.ExpiresAt))
	u.publish(ctx, entity.LinkEventCreated, link, now)

	return link, nil
}

func (u *LinkUsecase) validateCreate(input CreateLinkInput) (string, error) {
	if input.Amount <= 0 {
		return "", apperrors.InvalidArgument("amount must be greater than zero", nil)
	}
	if input.Amount > MaxAmount {
		return "", apperrors.InvalidArgument(fmt.Sprintf("amount must not exceed %d", MaxAmount), nil)
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = u.config.Currency
	}
	if currency != u.config.Currency {
		return "", apperrors.InvalidArgument(fmt.Sprintf("unsupported currency %q", input.Currency), nil)
	}
	return currency, nil
}

func (u *LinkUsecase) createSession(ctx context.Context, link *entity.PaymentLink) (*provider.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, u.config.CheckoutTimeout)
	defer cancel()

	productName := "Payment " + link.ID[:8]
	if link.OrderID != "" {
		productName = "Order " + link.OrderID
	}

	return u.provider.CreateSession(ctx, &provider.CreateSessionRequest{
		LinkID:      link.ID,
		Token:       link.Token,
		Amount:      link.Amount,
		Currency:    link.Currency,
		ProductName: productName,
		Email:       link.Email,
		ExpiresAt:   link.ExpiresAt,
	})
}

// GetLink returns the link with overdue pending links expired first.
func (u *LinkUsecase) GetLink(ctx context.Context, id string) (*entity.PaymentLink, error) {
	link, err := u.links.GetByID(ctx, id)
	if err != nil {
		return nil, u.lookupError(err, id)
	}
	return u.settle(ctx, link)
}

// GetLinkByToken is GetLink addressed by the public token.
func (u *LinkUsecase) GetLinkByToken(ctx context.Context, token string) (*entity.PaymentLink, error) {
	link, err := u.links.GetByToken(ctx, token)
	if err != nil {
		return nil, u.lookupError(err, token)
	}
	return u.settle(ctx, link)
}

// GetStatus returns the current status of a link.
func (u *LinkUsecase) GetStatus(ctx context.Context, id string) (entity.LinkStatus, error) {
	link, err := u.GetLink(ctx, id)
	if err != nil {
		return "", err
	}
	return link.Status, nil
}

// settle persists the pending -> expired transition of an overdue link.
// When the compare-and-set loses, the stored winner is returned instead.
func (u *LinkUsecase) settle(ctx context.Context, link *entity.PaymentLink) (*entity.PaymentLink, error) {
	now := u.clock.Now()
	if link.Status != entity.LinkStatusPending || !link.IsOverdue(now) {
		return link, nil
	}

	won, err := u.links.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, entity.LinkStatusExpired,
		entity.StatusUpdate{At: now})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to expire payment link")
	}
	if !won {
		current, err := u.links.GetByID(ctx, link.ID)
		if err != nil {
			return nil, u.lookupError(err, link.ID)
		}
		return current, nil
	}

	link.Status = entity.LinkStatusExpired
	link.ExpiredAt = &now
	u.logger.Info("Payment link expired",
		zap.String("link_id", link.ID),
		zap.Time("expires_at", link.ExpiresAt))
	u.publish(ctx, entity.LinkEventExpired, link, now)
	return link, nil
}

// MarkPaid records a confirmed payment. It is a no-op for paid links and
// returns a conflict for links that already expired; those are flagged for
// reconciliation. A pending link becomes paid even when overdue, as long as
// no expiry has been stored yet.
func (u *LinkUsecase) MarkPaid(ctx context.Context, id, sessionRef string) (*entity.PaymentLink, error) {
	link, err := u.links.GetByID(ctx, id)
	if err != nil {
		return nil, u.lookupError(err, id)
	}

	// The second pass only runs after losing a compare-and-set, at which
	// point the stored status is terminal.
	for attempt := 0; attempt < 2; attempt++ {
		switch link.Status {
		case entity.LinkStatusPaid:
			u.logger.Debug("Payment link already paid",
				zap.String("link_id", link.ID),
				zap.String("session_id", sessionRef))
			return link, nil

		case entity.LinkStatusExpired:
			return nil, u.paidAfterExpiry(ctx, link, sessionRef)

		case entity.LinkStatusPending:
			now := u.clock.Now()
			won, err := u.links.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, entity.LinkStatusPaid,
				entity.StatusUpdate{At: now, SessionRef: sessionRef})
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to mark payment link paid")
			}
			if won {
				link.Status = entity.LinkStatusPaid
				link.PaidAt = &now
				if sessionRef != "" {
					link.ExternalSessionRef = sessionRef
				}
				u.logger.Info("Payment link paid",
					zap.String("link_id", link.ID),
					zap.String("session_id", link.ExternalSessionRef))
				u.publish(ctx, entity.LinkEventPaid, link, now)
				return link, nil
			}

			link, err = u.links.GetByID(ctx, id)
			if err != nil {
				return nil, u.lookupError(err, id)
			}

		default:
			return nil, apperrors.NewAppError(apperrors.ErrInternal, "payment link has an unknown status",
				fmt.Errorf("link %s status %q", link.ID, link.Status))
		}
	}

	return nil, apperrors.NewAppError(apperrors.ErrInternal, "payment link status did not settle",
		fmt.Errorf("link %s still %s after compare-and-set", link.ID, link.Status))
}

func (u *LinkUsecase) paidAfterExpiry(ctx context.Context, link *entity.PaymentLink, sessionRef string) error {
	now := u.clock.Now()
	expiredAt := link.ExpiresAt
	if link.ExpiredAt != nil {
		expiredAt = *link.ExpiredAt
	}

	if err := u.links.FlagReconciliation(ctx, link.ID, sessionRef, now); err != nil {
		u.logger.Error("Failed to flag payment link for reconciliation",
			zap.String("link_id", link.ID),
			zap.Error(err))
	}
	u.logger.Warn("Payment received for expired link",
		zap.String("link_id", link.ID),
		zap.String("session_id", sessionRef),
		zap.Time("expired_at", expiredAt))

	link.NeedsReconciliation = true
	link.ReconciliationRef = sessionRef
	event := entity.NewLinkEvent(entity.LinkEventPaymentConflict, link, now)
	event.SessionRef = sessionRef
	u.emit(ctx, event)

	return apperrors.Conflict("payment link already expired",
		domainErrors.NewConflictError(link.ID, sessionRef, expiredAt))
}

// ConfirmCheckout handles the customer returning from hosted checkout. The
// session is read back from the provider and applied with MarkPaid when it
// belongs to the link and has been paid. Unpaid sessions leave the link as is.
func (u *LinkUsecase) ConfirmCheckout(ctx context.Context, token, sessionID string) (*entity.PaymentLink, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidArgument("session_id is required", nil)
	}

	link, err := u.links.GetByToken(ctx, token)
	if err != nil {
		return nil, u.lookupError(err, token)
	}

	session, err := u.getSession(ctx, sessionID)
	if err != nil {
		u.logger.Error("Failed to retrieve checkout session",
			zap.String("link_id", link.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, apperrors.Upstream("checkout provider unavailable", domainErrors.NewUpstreamError("get_session", err))
	}

	if session.LinkID != link.ID {
		u.logger.Warn("Checkout session does not belong to payment link",
			zap.String("link_id", link.ID),
			zap.String("session_id", sessionID),
			zap.String("session_link_id", session.LinkID))
		return nil, apperrors.InvalidArgument("checkout session does not match payment link", nil)
	}

	if !session.IsPaid() {
		return u.settle(ctx, link)
	}

	return u.MarkPaid(ctx, link.ID, session.ID)
}

func (u *LinkUsecase) getSession(ctx context.Context, sessionID string) (*provider.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, u.config.CheckoutTimeout)
	defer cancel()
	return u.provider.GetSession(ctx, sessionID)
}

// BeginCheckout returns a link that can still be paid. Paid and expired
// links are reported as conflicts.
func (u *LinkUsecase) BeginCheckout(ctx context.Context, token string) (*entity.PaymentLink, error) {
	link, err := u.GetLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.Status != entity.LinkStatusPending {
		return link, apperrors.Conflict(fmt.Sprintf("payment link is %s", link.Status), domainErrors.ErrLinkNotPayable)
	}
	return link, nil
}

// ExpireDue stores the expiry of up to one batch of overdue pending links
// and closes their checkout sessions. It returns how many links it expired.
func (u *LinkUsecase) ExpireDue(ctx context.Context) (int, error) {
	now := u.clock.Now()
	due, err := u.links.ListExpirable(ctx, now, u.config.SweepBatchSize)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to list expirable payment links")
	}

	expired := 0
	for _, link := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		won, err := u.links.CompareAndSetStatus(ctx, link.ID, entity.LinkStatusPending, entity.LinkStatusExpired,
			entity.StatusUpdate{At: now})
		if err != nil {
			apperrors.LogError(u.logger, err, "Failed to expire payment link", zap.String("link_id", link.ID))
			continue
		}
		if !won {
			continue
		}

		expired++
		link.Status = entity.LinkStatusExpired
		link.ExpiredAt = &now
		u.publish(ctx, entity.LinkEventExpired, link, now)
		u.expireSession(ctx, link)
	}

	if expired > 0 {
		u.logger.Info("Expired overdue payment links", zap.Int("count", expired))
	}
	return expired, nil
}

// expireSession closes the hosted session so the customer can no longer
// pay. Failures are only logged; a late payment is caught by MarkPaid.
func (u *LinkUsecase) expireSession(ctx context.Context, link *entity.PaymentLink) {
	if link.ExternalSessionRef == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, u.config.CheckoutTimeout)
	defer cancel()

	if err := u.provider.ExpireSession(ctx, link.ExternalSessionRef); err != nil {
		u.logger.Warn("Failed to expire checkout session",
			zap.String("link_id", link.ID),
			zap.String("session_id", link.ExternalSessionRef),
			zap.Error(err))
	}
}

// ListLinks returns a page of links, newest first, showing effective statuses.
func (u *LinkUsecase) ListLinks(ctx context.Context, filter entity.LinkFilter, params entity.PaginationParams) (*entity.PaginatedLinksResponse, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	params.Validate()

	now := u.clock.Now()
	filter.Now = now
	links, total, err := u.links.List(ctx, filter, params.PerPage, params.CalculateOffset())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list payment links")
	}

	for _, link := range links {
		link.Status = link.EffectiveStatus(now)
	}

	return &entity.PaginatedLinksResponse{
		Data:       links,
		Pagination: entity.NewPaginationMeta(params.Page, params.PerPage, total),
	}, nil
}

func validateFilter(filter entity.LinkFilter) error {
	if filter.Status != "" && !filter.Status.IsValid() {
		return apperrors.InvalidArgument(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	return nil
}

func (u *LinkUsecase) lookupError(err error, ref string) error {
	if errors.Is(err, domainErrors.ErrLinkNotFound) {
		return apperrors.NotFound("payment link not found", err)
	}
	return apperrors.Wrap(err, fmt.Sprintf("failed to load payment link %s", ref))
}

func (u *LinkUsecase) publish(ctx context.Context, eventType entity.LinkEventType, link *entity.PaymentLink, at time.Time) {
	u.emit(ctx, entity.NewLinkEvent(eventType, link, at))
}

func (u *LinkUsecase) emit(ctx context.Context, event entity.LinkEvent) {
	if err := u.publisher.PublishLinkEvent(ctx, event); err != nil {
		u.logger.Warn("Failed to publish link event",
			zap.String("type", string(event.Type)),
			zap.String("link_id", event.LinkID),
			zap.Error(err))
	}
}
