package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/casavia/billing-service/internal/domain/model"
)

// PlanRepository is the account plan store. Lookups return (nil, nil) when no
// row matches; a miss is an expected condition, not an error.
type PlanRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.PlanState, error)
	FindByCustomerID(ctx context.Context, customerID string) (*model.PlanState, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.PlanState, error)
	// Upsert writes the plan row keyed by account id. It is the only path
	// that writes billing_source=stripe.
	Upsert(ctx context.Context, plan *model.PlanState) error
}
