package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// PlanTier is the named entitlement level stored per account.
type PlanTier string

const (
	PlanTierFree      PlanTier = "free"
	PlanTierStarter   PlanTier = "starter"
	PlanTierPro       PlanTier = "pro"
	PlanTierTenantPro PlanTier = "tenant_pro"
)

// Scan implements sql.Scanner interface
func (p *PlanTier) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = PlanTier(v)
	case []byte:
		*p = PlanTier(v)
	default:
		*p = PlanTierFree
	}
	return nil
}

// Value implements driver.Valuer interface
func (p PlanTier) Value() (driver.Value, error) {
	return string(p), nil
}

// BillingSource tags the provenance of a plan row. A manual source is a lock:
// no automated event may overwrite the plan fields of a manual row.
type BillingSource string

const (
	BillingSourceManual BillingSource = "manual"
	BillingSourceStripe BillingSource = "stripe"
)

// Scan implements sql.Scanner interface
func (b *BillingSource) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*b = BillingSource(v)
	case []byte:
		*b = BillingSource(v)
	default:
		*b = BillingSourceStripe
	}
	return nil
}

// Value implements driver.Valuer interface
func (b BillingSource) Value() (driver.Value, error) {
	return string(b), nil
}

// PlanState is the single source-of-truth plan row per account. The provider
// mirror columns double as the customer/subscription → account mapping and as
// the basis for redundant-update detection.
type PlanState struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`
	PlanTier      PlanTier      `gorm:"type:plan_tier;not null;default:'free'" json:"plan_tier"`
	BillingSource BillingSource `gorm:"type:billing_source;not null;default:'stripe'" json:"billing_source"`
	// ValidUntil is nil for indefinite entitlements (free tier or an active
	// non-expiring grant).
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	// Last-known mirrored provider state.
	ProviderCustomerID     string     `gorm:"size:100;index" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"size:100;index" json:"provider_subscription_id"`
	ProviderPriceID        string     `gorm:"size:100" json:"provider_price_id"`
	ProviderStatus         string     `gorm:"size:50" json:"provider_status"`
	ProviderPeriodEnd      *time.Time `json:"provider_period_end,omitempty"`

	UpdatedBy string    `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PlanState) TableName() string {
	return "plan_states"
}
