package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
	"github.com/casavia/billing-service/pkg/errors"
)

type eventLedgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEventLedgerRepository creates a new idempotency ledger repository
func NewEventLedgerRepository(db *gorm.DB, logger *zap.Logger) repository.EventLedgerRepository {
	return &eventLedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts the event id exactly once. The unique constraint on
// event_id is the only concurrency primitive: a duplicate-key failure means a
// concurrent or earlier delivery already claimed this event.
func (r *eventLedgerRepository) Record(ctx context.Context, eventID, eventType string) error {
	event := &model.ProcessedEvent{
		EventID:    eventID,
		EventType:  eventType,
		ReceivedAt: time.Now(),
	}

	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if errors.IsDuplicateKey(err) {
			return repository.ErrAlreadyProcessed
		}
		r.logger.Error("Failed to record processed event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to record processed event: %w", err)
	}

	return nil
}
