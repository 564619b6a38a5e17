package model

import (
	"time"
)

// PaymentStatus represents the lifecycle of a one-off payment.
type PaymentStatus string

const (
	PaymentStatusInitialized PaymentStatus = "initialized"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusSucceeded   PaymentStatus = "succeeded"
	PaymentStatusFailed      PaymentStatus = "failed"
)

// PendingPayment is a one-off payment tracked by provider reference. The
// unique (provider, reference) pair lets a concurrent reconciliation sweep
// lose the insert race safely and re-fetch instead of failing.
type PendingPayment struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider      string        `gorm:"not null;size:50;uniqueIndex:idx_payments_provider_reference" json:"provider"`
	Reference     string        `gorm:"not null;size:100;uniqueIndex:idx_payments_provider_reference" json:"reference"`
	Status        PaymentStatus `gorm:"type:payment_status;not null;default:'initialized'" json:"status"`
	AmountMinor   int64         `gorm:"not null" json:"amount_minor"`
	Currency      string        `gorm:"size:3;default:'NGN'" json:"currency"`
	AuthCode      string        `gorm:"size:100" json:"auth_code"`
	CustomerEmail string        `gorm:"size:255" json:"customer_email"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	ReceiptSentAt *time.Time    `json:"receipt_sent_at,omitempty"`
	Meta          JSONB         `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt     time.Time     `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PendingPayment) TableName() string {
	return "pending_payments"
}
