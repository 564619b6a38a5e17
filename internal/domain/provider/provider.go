package provider

import (
	"context"
	"fmt"
	"time"

	stripesdk "github.com/stripe/stripe-go/v79"
)

// ProviderError represents an error from a payment provider
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s]: %s", e.Code, e.Message)
}

// SubscriptionFetcher retrieves live subscription state from the billing
// provider. Used when a webhook payload is too thin to act on directly.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripesdk.Subscription, error)
}

// PurchaseMetadata is the purchase intent attached to a transaction at
// initialization time and echoed back by the provider on verification.
type PurchaseMetadata struct {
	TargetResourceID string `json:"target_resource_id"`
	Plan             string `json:"plan"`
	DurationDays     int    `json:"duration_days"`
	RequesterID      string `json:"requester"`
}

// VerifyResult is the provider's answer for a transaction reference.
// OK is true only when the provider reports a final successful charge.
type VerifyResult struct {
	OK            bool
	Status        string
	Reference     string
	AmountMinor   int64
	Currency      string
	PaidAt        *time.Time
	AuthCode      string
	CustomerEmail string
	Metadata      PurchaseMetadata
}

// TransactionVerifier confirms the true state of a transaction reference
// against the provider's records.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)
}
