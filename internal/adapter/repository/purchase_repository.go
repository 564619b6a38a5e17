package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
)

type purchaseRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *gorm.DB, logger *zap.Logger) repository.PurchaseRepository {
	return &purchaseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *model.PurchaseRecord) error {
	err := r.db.WithContext(ctx).Create(purchase).Error
	if err != nil {
		r.logger.Error("Failed to create purchase record",
			zap.Int64("payment_id", purchase.PaymentID),
			zap.String("target_resource_id", purchase.TargetResourceID),
			zap.Error(err))
		return fmt.Errorf("failed to create purchase record: %w", err)
	}
	return nil
}

func (r *purchaseRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*model.PurchaseRecord, error) {
	var purchase model.PurchaseRecord

	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&purchase).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get purchase by payment id",
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	return &purchase, nil
}

// Activate invokes the activate_purchase database function. The function
// performs the pending → activated transition atomically and returns whether
// the purchase was already activated before this call.
func (r *purchaseRepository) Activate(ctx context.Context, paymentID int64) (bool, error) {
	var alreadyActivated bool

	err := r.db.WithContext(ctx).
		Raw(`SELECT activate_purchase(?)`, paymentID).
		Scan(&alreadyActivated).Error

	if err != nil {
		r.logger.Error("Failed to activate purchase",
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to activate purchase: %w", err)
	}

	return alreadyActivated, nil
}
