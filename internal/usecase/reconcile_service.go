package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/provider"
	"github.com/casavia/billing-service/internal/domain/repository"
	"github.com/casavia/billing-service/internal/infrastructure/notify"
	"github.com/casavia/billing-service/pkg/errors"
)

// ProviderPaystack is the provider tag stored on reconciled payments.
const ProviderPaystack = "paystack"

// SweepMode selects which candidates a batch sweep scans.
type SweepMode string

const (
	// SweepModeStuck scans initialized/pending payments older than the
	// stale threshold.
	SweepModeStuck SweepMode = "stuck"
	// SweepModeReceipts scans succeeded payments missing a receipt.
	SweepModeReceipts SweepMode = "receipts"
	// SweepModeBatch scans both candidate sets.
	SweepModeBatch SweepMode = "batch"
)

// Per-reference terminal statuses.
const (
	RefStatusReconciled         = "reconciled"
	RefStatusVerificationFailed = "verification_failed"
	RefStatusUnknownReference   = "unknown_reference"
)

// ReferenceOutcome reports what a single reference reconciliation did.
type ReferenceOutcome struct {
	Reference          string `json:"reference"`
	Status             string `json:"status"`
	ProviderStatus     string `json:"provider_status,omitempty"`
	Activated          bool   `json:"activated"`
	AlreadyActivated   bool   `json:"already_activated"`
	ReceiptSent        bool   `json:"receipt_sent"`
	ReceiptAlreadySent bool   `json:"receipt_already_sent"`
}

// Summary aggregates a batch sweep. Per-reference failures are isolated: one
// bad reference never aborts the rest of the batch.
type Summary struct {
	Mode              SweepMode `json:"mode"`
	Scanned           int       `json:"scanned"`
	Reconciled        int       `json:"reconciled"`
	Activated         int       `json:"activated"`
	AlreadyActivated  int       `json:"already_activated"`
	ReceiptsSent      int       `json:"receipts_sent"`
	ReceiptsSkipped   int       `json:"receipts_skipped"`
	VerifyFailedCount int       `json:"verify_failed"`
	UnknownCount      int       `json:"unknown"`
	ErrorCount        int       `json:"errors"`
	Errors            []string  `json:"error_samples,omitempty"`
}

const maxErrorSamples = 10

// ReconcileService drives payments from provider truth to local activation.
type ReconcileService struct {
	cfg          *config.ReconcileConfig
	paymentRepo  repository.PaymentRepository
	purchaseRepo repository.PurchaseRepository
	verifier     provider.TransactionVerifier
	receipts     notify.ReceiptSender
	logger       *zap.Logger
}

// NewReconcileService creates the reconciliation service.
func NewReconcileService(
	cfg *config.ReconcileConfig,
	paymentRepo repository.PaymentRepository,
	purchaseRepo repository.PurchaseRepository,
	verifier provider.TransactionVerifier,
	receipts notify.ReceiptSender,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		cfg:          cfg,
		paymentRepo:  paymentRepo,
		purchaseRepo: purchaseRepo,
		verifier:     verifier,
		receipts:     receipts,
		logger:       logger,
	}
}

// ReconcileReference verifies a single reference against the provider and,
// when the charge really succeeded, marks the payment, activates the purchase
// and sends the receipt. Every step is idempotent, so re-running a reference
// is always safe.
func (s *ReconcileService) ReconcileReference(ctx context.Context, reference string) (*ReferenceOutcome, error) {
	return s.reconcile(ctx, reference, s.cfg.EnsureMissingPayment)
}

// ReconcileReferenceWithMaterialize overrides the configured lazy payment
// materialization for a single call.
func (s *ReconcileService) ReconcileReferenceWithMaterialize(ctx context.Context, reference string, ensureMissing bool) (*ReferenceOutcome, error) {
	return s.reconcile(ctx, reference, ensureMissing)
}

func (s *ReconcileService) reconcile(ctx context.Context, reference string, ensureMissing bool) (*ReferenceOutcome, error) {
	verify, err := s.verifier.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", reference, err)
	}

	// A non-success provider status is terminal for this reference. Nothing
	// local is touched: the payment stays as-is for later sweeps in case
	// the provider state changes.
	if !verify.OK {
		s.logger.Info("Reference not successful at provider",
			zap.String("reference", reference),
			zap.String("provider_status", verify.Status))
		return &ReferenceOutcome{
			Reference:      reference,
			Status:         RefStatusVerificationFailed,
			ProviderStatus: verify.Status,
		}, nil
	}

	payment, err := s.paymentRepo.GetByReference(ctx, ProviderPaystack, reference)
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", reference, err)
	}

	if payment == nil {
		if !ensureMissing {
			s.logger.Warn("Verified reference has no local payment",
				zap.String("reference", reference))
			return &ReferenceOutcome{
				Reference:      reference,
				Status:         RefStatusUnknownReference,
				ProviderStatus: verify.Status,
			}, nil
		}
		payment, err = s.materializePayment(ctx, reference, verify)
		if err != nil {
			return nil, err
		}
	}

	if payment.Status != model.PaymentStatusSucceeded {
		paidAt := time.Now()
		if verify.PaidAt != nil {
			paidAt = *verify.PaidAt
		}
		if err := s.paymentRepo.MarkSucceeded(ctx, payment.ID, paidAt, verify.AuthCode, verify.CustomerEmail); err != nil {
			return nil, fmt.Errorf("mark succeeded %s: %w", reference, err)
		}
		payment.Status = model.PaymentStatusSucceeded
		payment.PaidAt = &paidAt
		payment.AuthCode = verify.AuthCode
		payment.CustomerEmail = verify.CustomerEmail
	}

	purchase, err := s.ensurePurchase(ctx, payment, verify)
	if err != nil {
		return nil, err
	}

	alreadyActivated, err := s.purchaseRepo.Activate(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("activate purchase for %s: %w", reference, err)
	}

	outcome := &ReferenceOutcome{
		Reference:        reference,
		Status:           RefStatusReconciled,
		ProviderStatus:   verify.Status,
		Activated:        !alreadyActivated,
		AlreadyActivated: alreadyActivated,
	}

	if payment.ReceiptSentAt != nil {
		outcome.ReceiptAlreadySent = true
		return outcome, nil
	}

	// Receipt failures are logged but never fail the reconciliation; the
	// receipts sweep retries them later.
	if err := s.receipts.SendReceipt(ctx, payment, purchase); err != nil {
		s.logger.Warn("Failed to send receipt",
			zap.String("reference", reference),
			zap.Error(err))
		return outcome, nil
	}
	if err := s.paymentRepo.MarkReceiptSent(ctx, payment.ID, time.Now()); err != nil {
		s.logger.Warn("Failed to stamp receipt",
			zap.String("reference", reference),
			zap.Error(err))
		return outcome, nil
	}
	outcome.ReceiptSent = true

	return outcome, nil
}

// materializePayment creates the local payment row from verified provider
// data. A lost insert race against a concurrent sweep is resolved by
// re-fetching the winner's row.
func (s *ReconcileService) materializePayment(ctx context.Context, reference string, verify *provider.VerifyResult) (*model.PendingPayment, error) {
	payment := &model.PendingPayment{
		Provider:    ProviderPaystack,
		Reference:   reference,
		Status:      model.PaymentStatusPending,
		AmountMinor: verify.AmountMinor,
		Currency:    verify.Currency,
		Meta: model.JSONB{
			"target_resource_id": verify.Metadata.TargetResourceID,
			"plan":               verify.Metadata.Plan,
			"duration_days":      verify.Metadata.DurationDays,
			"requester":          verify.Metadata.RequesterID,
		},
	}

	err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		if errors.IsDuplicateKey(err) {
			existing, fetchErr := s.paymentRepo.GetByReference(ctx, ProviderPaystack, reference)
			if fetchErr != nil {
				return nil, fmt.Errorf("refetch payment %s: %w", reference, fetchErr)
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("materialize payment %s: %w", reference, err)
	}

	s.logger.Info("Materialized payment from provider record",
		zap.String("reference", reference),
		zap.Int64("amount_minor", verify.AmountMinor))

	return payment, nil
}

// ensurePurchase loads or creates the purchase linked to the payment, using
// the purchase intent echoed back in provider metadata.
func (s *ReconcileService) ensurePurchase(ctx context.Context, payment *model.PendingPayment, verify *provider.VerifyResult) (*model.PurchaseRecord, error) {
	purchase, err := s.purchaseRepo.GetByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("load purchase for %s: %w", payment.Reference, err)
	}
	if purchase != nil {
		return purchase, nil
	}

	if verify.Metadata.TargetResourceID == "" {
		return nil, fmt.Errorf("payment %s has no purchase and no target metadata", payment.Reference)
	}

	purchase = &model.PurchaseRecord{
		PaymentID:        payment.ID,
		TargetResourceID: verify.Metadata.TargetResourceID,
		Plan:             verify.Metadata.Plan,
		DurationDays:     verify.Metadata.DurationDays,
		Status:           model.PurchaseStatusPending,
	}
	if verify.Metadata.RequesterID != "" {
		if requesterID, parseErr := uuid.Parse(verify.Metadata.RequesterID); parseErr == nil {
			purchase.RequesterID = &requesterID
		}
	}

	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		if errors.IsDuplicateKey(err) {
			existing, fetchErr := s.purchaseRepo.GetByPaymentID(ctx, payment.ID)
			if fetchErr != nil {
				return nil, fmt.Errorf("refetch purchase for %s: %w", payment.Reference, fetchErr)
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create purchase for %s: %w", payment.Reference, err)
	}

	return purchase, nil
}

// Sweep reconciles a batch of candidate references. Mode selects the
// candidate set; limit 0 uses the configured batch limit.
func (s *ReconcileService) Sweep(ctx context.Context, mode SweepMode, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = s.cfg.Limit()
	}

	references, err := s.collectCandidates(ctx, mode, limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Mode: mode, Scanned: len(references)}

	for _, reference := range references {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, err := s.ReconcileReference(ctx, reference)
		if err != nil {
			summary.ErrorCount++
			if len(summary.Errors) < maxErrorSamples {
				summary.Errors = append(summary.Errors, err.Error())
			}
			s.logger.Error("Failed to reconcile reference",
				zap.String("reference", reference),
				zap.Error(err))
			continue
		}

		switch outcome.Status {
		case RefStatusReconciled:
			summary.Reconciled++
		case RefStatusVerificationFailed:
			summary.VerifyFailedCount++
		case RefStatusUnknownReference:
			summary.UnknownCount++
		}
		if outcome.Activated {
			summary.Activated++
		}
		if outcome.AlreadyActivated {
			summary.AlreadyActivated++
		}
		if outcome.ReceiptSent {
			summary.ReceiptsSent++
		}
		if outcome.ReceiptAlreadySent {
			summary.ReceiptsSkipped++
		}
	}

	s.logger.Info("Reconciliation sweep completed",
		zap.String("mode", string(mode)),
		zap.Int("scanned", summary.Scanned),
		zap.Int("reconciled", summary.Reconciled),
		zap.Int("activated", summary.Activated),
		zap.Int("receipts_sent", summary.ReceiptsSent),
		zap.Int("errors", summary.ErrorCount))

	return summary, nil
}

// collectCandidates gathers references per mode, de-duplicated in order.
func (s *ReconcileService) collectCandidates(ctx context.Context, mode SweepMode, limit int) ([]string, error) {
	var references []string

	if mode == SweepModeStuck || mode == SweepModeBatch {
		cutoff := time.Now().Add(-s.cfg.StuckThreshold())
		stuck, err := s.paymentRepo.ListStuckPending(ctx, ProviderPaystack, cutoff, limit)
		if err != nil {
			return nil, fmt.Errorf("list stuck payments: %w", err)
		}
		references = append(references, stuck...)
	}

	if mode == SweepModeReceipts || mode == SweepModeBatch {
		awaiting, err := s.paymentRepo.ListAwaitingReceipt(ctx, ProviderPaystack, limit)
		if err != nil {
			return nil, fmt.Errorf("list payments awaiting receipt: %w", err)
		}
		references = append(references, awaiting...)
	}

	if mode != SweepModeBatch {
		return references, nil
	}

	seen := make(map[string]struct{}, len(references))
	deduped := references[:0]
	for _, reference := range references {
		if _, ok := seen[reference]; ok {
			continue
		}
		seen[reference] = struct{}{}
		deduped = append(deduped, reference)
	}
	return deduped, nil
}
