package database

import (
	"github.com/wekeepgrowing/paylink/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/paylink/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Link    domainRepo.LinkRepository
	Webhook domainRepo.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Link:    repository.NewLinkRepository(db, logger),
		Webhook: repository.NewWebhookRepository(db, logger),
	}
}

// NewMemoryRepositories creates process-local repositories. Records are lost
// on restart.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Link:    repository.NewMemoryLinkRepository(),
		Webhook: repository.NewMemoryWebhookRepository(),
	}
}
