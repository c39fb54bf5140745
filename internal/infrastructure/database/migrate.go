package database

import (
	"github.com/wekeepgrowing/paylink/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&model.PaymentLink{},
		&model.StripeWebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes that GORM doesn't handle
// automatically. Both statements are valid on SQLite and PostgreSQL.
func createCustomIndexes(db *gorm.DB) error {
	// The sweeper scans pending links by expiry
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payment_links_pending_expiry ON payment_links (expires_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON stripe_webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	return nil
}
