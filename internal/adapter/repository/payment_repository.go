package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new pending payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByReference retrieves a payment by provider reference
func (r *paymentRepository) GetByReference(ctx context.Context, provider, reference string) (*model.PendingPayment, error) {
	var payment model.PendingPayment

	err := r.db.WithContext(ctx).
		Where("provider = ? AND reference = ?", provider, reference).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by reference",
			zap.String("provider", provider),
			zap.String("reference", reference),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment by reference: %w", err)
	}

	return &payment, nil
}

// Create inserts a new payment. Duplicate (provider, reference) inserts fail
// with a unique-constraint error that the caller handles by re-fetching.
func (r *paymentRepository) Create(ctx context.Context, payment *model.PendingPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// MarkSucceeded records the verified success state on a payment
func (r *paymentRepository) MarkSucceeded(ctx context.Context, id int64, paidAt time.Time, authCode, customerEmail string) error {
	result := r.db.WithContext(ctx).
		Model(&model.PendingPayment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusSucceeded,
			"paid_at":        &paidAt,
			"auth_code":      authCode,
			"customer_email": customerEmail,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark payment succeeded",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark payment succeeded: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("payment not found: %d", id)
	}

	return nil
}

// MarkReceiptSent stamps receipt_sent_at on a payment
func (r *paymentRepository) MarkReceiptSent(ctx context.Context, id int64, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.PendingPayment{}).
		Where("id = ? AND receipt_sent_at IS NULL", id).
		Updates(map[string]interface{}{
			"receipt_sent_at": &sentAt,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark receipt sent",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark receipt sent: %w", result.Error)
	}

	return nil
}

// ListStuckPending returns references of payments stuck before the cutoff
func (r *paymentRepository) ListStuckPending(ctx context.Context, provider string, before time.Time, limit int) ([]string, error) {
	var references []string

	query := r.db.WithContext(ctx).
		Model(&model.PendingPayment{}).
		Where("provider = ? AND status IN ? AND created_at < ?",
			provider,
			[]model.PaymentStatus{model.PaymentStatusInitialized, model.PaymentStatusPending},
			before).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Pluck("reference", &references).Error; err != nil {
		r.logger.Error("Failed to list stuck payments",
			zap.String("provider", provider),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list stuck payments: %w", err)
	}

	return references, nil
}

// ListAwaitingReceipt returns references of succeeded payments without a receipt
func (r *paymentRepository) ListAwaitingReceipt(ctx context.Context, provider string, limit int) ([]string, error) {
	var references []string

	query := r.db.WithContext(ctx).
		Model(&model.PendingPayment{}).
		Where("provider = ? AND status = ? AND receipt_sent_at IS NULL",
			provider, model.PaymentStatusSucceeded).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Pluck("reference", &references).Error; err != nil {
		r.logger.Error("Failed to list payments awaiting receipt",
			zap.String("provider", provider),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list payments awaiting receipt: %w", err)
	}

	return references, nil
}
