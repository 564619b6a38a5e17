package repository

import (
	"context"
	"errors"
)

// ErrAlreadyProcessed signals that an event id is already present in the
// ledger. Callers short-circuit with a success response so the provider stops
// retrying.
var ErrAlreadyProcessed = errors.New("event already processed")

// EventLedgerRepository is the append-only idempotency ledger.
type EventLedgerRepository interface {
	// Record inserts the event id exactly once. A unique-constraint
	// violation is returned as ErrAlreadyProcessed; any other failure is a
	// hard error the provider should retry.
	Record(ctx context.Context, eventID, eventType string) error
}
