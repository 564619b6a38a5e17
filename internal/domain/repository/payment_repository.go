package repository

import (
	"context"
	"time"

	"github.com/casavia/billing-service/internal/domain/model"
)

// PaymentRepository stores one-off payments tracked by provider reference.
type PaymentRepository interface {
	GetByReference(ctx context.Context, provider, reference string) (*model.PendingPayment, error)
	// Create inserts a new payment. A duplicate (provider, reference) insert
	// fails with a unique-constraint error; the caller re-fetches instead.
	Create(ctx context.Context, payment *model.PendingPayment) error
	MarkSucceeded(ctx context.Context, id int64, paidAt time.Time, authCode, customerEmail string) error
	MarkReceiptSent(ctx context.Context, id int64, sentAt time.Time) error
	// ListStuckPending returns references of initialized/pending payments
	// created before the cutoff.
	ListStuckPending(ctx context.Context, provider string, before time.Time, limit int) ([]string, error)
	// ListAwaitingReceipt returns references of succeeded payments whose
	// receipt has not been sent.
	ListAwaitingReceipt(ctx context.Context, provider string, limit int) ([]string, error)
}
