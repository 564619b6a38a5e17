package billing

import (
	"time"
)

// EventKind is the closed set of provider event variants the dispatcher
// understands. Raw provider payloads are narrowed into these at the boundary
// so nothing downstream touches dynamic fields.
type EventKind string

const (
	EventCheckoutCompleted    EventKind = "checkout_completed"
	EventSubscriptionCreated  EventKind = "subscription_created"
	EventSubscriptionUpdated  EventKind = "subscription_updated"
	EventSubscriptionDeleted  EventKind = "subscription_deleted"
	EventInvoicePaid          EventKind = "invoice_paid"
	EventInvoicePaymentFailed EventKind = "invoice_payment_failed"
)

// SubscriptionEvent is the normalized form every handled provider event is
// reduced to before the decision function runs.
type SubscriptionEvent struct {
	Kind           EventKind
	EventID        string
	CustomerID     string
	SubscriptionID string
	PriceID        string
	Status         string
	// CurrentPeriodEnd is nil when the provider payload carried no period.
	CurrentPeriodEnd *time.Time
	// AccountHint carries an account id embedded in provider metadata at
	// checkout time. It substitutes for profile resolution on the very first
	// event of a brand-new customer.
	AccountHint string
	// AllowImmediateDowngrade is set only for subscription deletion, which
	// revokes entitlements regardless of status or period end.
	AllowImmediateDowngrade bool
}
