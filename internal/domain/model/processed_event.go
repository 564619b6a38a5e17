package model

import (
	"time"
)

// ProcessedEvent is the append-only idempotency ledger. The unique constraint
// on event_id is the concurrency primitive that keeps provider retries from
// applying the same event twice.
type ProcessedEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"uniqueIndex;not null;size:255" json:"event_id"`
	EventType  string    `gorm:"not null;size:100;index" json:"event_type"`
	ReceivedAt time.Time `gorm:"default:now()" json:"received_at"`
}

// TableName specifies the table name for GORM
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
