package repository

import (
	"context"

	"github.com/casavia/billing-service/internal/domain/model"
)

// PurchaseRepository stores listing purchases and drives their activation.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *model.PurchaseRecord) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*model.PurchaseRecord, error)
	// Activate runs the atomic database-side activation keyed by payment id.
	// It reports alreadyActivated=true when the purchase had been activated
	// by an earlier call, without double-applying the transition.
	Activate(ctx context.Context, paymentID int64) (alreadyActivated bool, err error)
}
