package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan state repository
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) repository.PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

// GetByAccountID retrieves the plan row for an account
func (r *planRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.PlanState, error) {
	var plan model.PlanState

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get plan state",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get plan state: %w", err)
	}

	return &plan, nil
}

// FindByCustomerID retrieves the plan row mirroring a provider customer id
func (r *planRepository) FindByCustomerID(ctx context.Context, customerID string) (*model.PlanState, error) {
	var plan model.PlanState

	err := r.db.WithContext(ctx).
		Where("provider_customer_id = ?", customerID).
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to find plan by customer id",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find plan by customer id: %w", err)
	}

	return &plan, nil
}

// FindBySubscriptionID retrieves the plan row mirroring a provider subscription id
func (r *planRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.PlanState, error) {
	var plan model.PlanState

	err := r.db.WithContext(ctx).
		Where("provider_subscription_id = ?", subscriptionID).
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to find plan by subscription id",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find plan by subscription id: %w", err)
	}

	return &plan, nil
}

// Upsert writes the plan row keyed by account id. Concurrent upserts for the
// same account serialize on the unique index with last-write-wins semantics.
func (r *planRepository) Upsert(ctx context.Context, plan *model.PlanState) error {
	plan.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_tier",
				"billing_source",
				"valid_until",
				"provider_customer_id",
				"provider_subscription_id",
				"provider_price_id",
				"provider_status",
				"provider_period_end",
				"updated_by",
				"updated_at",
			}),
		}).
		Create(plan).Error

	if err != nil {
		r.logger.Error("Failed to upsert plan state",
			zap.String("account_id", plan.AccountID.String()),
			zap.String("plan_tier", string(plan.PlanTier)),
			zap.Error(err))
		return fmt.Errorf("failed to upsert plan state: %w", err)
	}

	return nil
}
