package model

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseStatus represents the activation state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusActivated PurchaseStatus = "activated"
)

// PurchaseRecord links a payment to the listing promotion it buys. The
// pending → activated transition happens at most once, enforced by the
// activate_purchase database function.
type PurchaseRecord struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID        int64          `gorm:"uniqueIndex;not null" json:"payment_id"`
	TargetResourceID string         `gorm:"not null;size:100;index" json:"target_resource_id"`
	Plan             string         `gorm:"size:50" json:"plan"`
	DurationDays     int            `gorm:"default:0" json:"duration_days"`
	RequesterID      *uuid.UUID     `gorm:"type:uuid" json:"requester_id,omitempty"`
	Status           PurchaseStatus `gorm:"type:purchase_status;not null;default:'pending'" json:"status"`
	ActivatedAt      *time.Time     `json:"activated_at,omitempty"`
	CreatedAt        time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"default:now()" json:"updated_at"`

	// Relations
	Payment *PendingPayment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// TableName specifies the table name for GORM
func (PurchaseRecord) TableName() string {
	return "purchase_records"
}
