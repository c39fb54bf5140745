package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LinkSweeper periodically stores the expiry of overdue pending links so
// they expire even when nobody reads them.
type LinkSweeper struct {
	links    *LinkUsecase
	interval time.Duration
	logger   *zap.Logger
}

func NewLinkSweeper(links *LinkUsecase, interval time.Duration, logger *zap.Logger) *LinkSweeper {
	return &LinkSweeper{
		links:    links,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is cancelled. A non-positive interval disables it.
func (s *LinkSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Link sweeper disabled")
		return
	}

	s.logger.Info("Link sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Link sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *LinkSweeper) sweep(ctx context.Context) {
	// Keep going while full batches come back so a backlog drains in one tick.
	for {
		n, err := s.links.ExpireDue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Link sweep failed", zap.Error(err))
			}
			return
		}
		if n == 0 || n < s.links.config.SweepBatchSize {
			return
		}
	}
}
