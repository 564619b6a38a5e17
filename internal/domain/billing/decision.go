package billing

import (
	"time"

	"github.com/casavia/billing-service/internal/domain/model"
)

// Skip reasons returned by DecidePlanUpdate.
const (
	SkipReasonManualOverride  = "manual_override"
	SkipReasonDuplicateUpdate = "duplicate_update"
)

// Provider subscription statuses that force an immediate downgrade.
const (
	StatusCanceled          = "canceled"
	StatusIncompleteExpired = "incomplete_expired"
)

// DecisionInput is the resolved view of an incoming provider event.
type DecisionInput struct {
	Tier                    model.PlanTier
	Status                  string
	CurrentPeriodEnd        *time.Time
	AllowImmediateDowngrade bool

	CustomerID     string
	SubscriptionID string
	PriceID        string
}

// Decision is the outcome of DecidePlanUpdate.
type Decision struct {
	PlanTier   model.PlanTier
	ValidUntil *time.Time
	Skip       bool
	SkipReason string
}

// DecidePlanUpdate decides the next plan tier and expiry for an account given
// an incoming provider event and the stored plan row. It is pure: no side
// effects, fully deterministic given its inputs.
//
// A manual billing source on the stored row wins over any automated update.
// A fully redundant update (identical tier, expiry and mirrored provider
// fields on a stripe-sourced row) is suppressed so replayed webhooks do not
// produce noisy writes.
func DecidePlanUpdate(in DecisionInput, existing *model.PlanState, now time.Time) Decision {
	if existing != nil && existing.BillingSource == model.BillingSourceManual {
		return Decision{
			PlanTier:   existing.PlanTier,
			ValidUntil: existing.ValidUntil,
			Skip:       true,
			SkipReason: SkipReasonManualOverride,
		}
	}

	isExpired := in.CurrentPeriodEnd != nil && !in.CurrentPeriodEnd.After(now)
	shouldDowngradeNow := in.AllowImmediateDowngrade ||
		in.Status == StatusCanceled ||
		in.Status == StatusIncompleteExpired ||
		isExpired

	var tier model.PlanTier
	var validUntil *time.Time
	if shouldDowngradeNow {
		tier = model.PlanTierFree
		validUntil = nil
	} else {
		tier = in.Tier
		validUntil = in.CurrentPeriodEnd
	}

	// Suppress only on full-tuple equality. A status-only change with the
	// same tier and period end is persisted.
	if existing != nil &&
		existing.BillingSource == model.BillingSourceStripe &&
		existing.PlanTier == tier &&
		timesEqual(existing.ValidUntil, validUntil) &&
		existing.ProviderSubscriptionID == in.SubscriptionID &&
		existing.ProviderStatus == in.Status &&
		existing.ProviderPriceID == in.PriceID &&
		timesEqual(existing.ProviderPeriodEnd, in.CurrentPeriodEnd) {
		return Decision{
			PlanTier:   tier,
			ValidUntil: validUntil,
			Skip:       true,
			SkipReason: SkipReasonDuplicateUpdate,
		}
	}

	return Decision{
		PlanTier:   tier,
		ValidUntil: validUntil,
	}
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
