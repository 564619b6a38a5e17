package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/billing-service/internal/adapter/repository"
	domainRepo "github.com/casavia/billing-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Plan        domainRepo.PlanRepository
	EventLedger domainRepo.EventLedgerRepository
	Payment     domainRepo.PaymentRepository
	Purchase    domainRepo.PurchaseRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Plan:        repository.NewPlanRepository(db, logger),
		EventLedger: repository.NewEventLedgerRepository(db, logger),
		Payment:     repository.NewPaymentRepository(db, logger),
		Purchase:    repository.NewPurchaseRepository(db, logger),
	}
}
