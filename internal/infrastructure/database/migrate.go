package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/casavia/billing-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.PlanState{},
		&model.ProcessedEvent{},
		&model.PendingPayment{},
		&model.PurchaseRecord{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	if err := createDatabaseFunctions(db); err != nil {
		logger.Error("Failed to create database functions", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Candidate scans for the reconciliation sweep.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_payments_stuck ON pending_payments (created_at) WHERE status IN ('initialized', 'pending')`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_payments_awaiting_receipt ON pending_payments (created_at) WHERE status = 'succeeded' AND receipt_sent_at IS NULL`).Error; err != nil {
		return err
	}
	return nil
}

// createCustomTypes creates custom PostgreSQL enum types
func createCustomTypes(db *gorm.DB) error {
	types := map[string]string{
		"plan_tier":       `CREATE TYPE plan_tier AS ENUM ('free', 'starter', 'pro', 'tenant_pro')`,
		"billing_source":  `CREATE TYPE billing_source AS ENUM ('manual', 'stripe')`,
		"payment_status":  `CREATE TYPE payment_status AS ENUM ('initialized', 'pending', 'succeeded', 'failed')`,
		"purchase_status": `CREATE TYPE purchase_status AS ENUM ('pending', 'activated')`,
	}

	for name, ddl := range types {
		var exists bool
		db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, name).Scan(&exists)
		if !exists {
			if err := db.Exec(ddl).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// createDatabaseFunctions creates the atomic purchase activation function.
// Activation is a single statement guarded by a row lock, so concurrent
// sweeps for the same payment cannot double-apply the transition.
func createDatabaseFunctions(db *gorm.DB) error {
	activateFunctionSQL := `
CREATE OR REPLACE FUNCTION activate_purchase(p_payment_id BIGINT) RETURNS BOOLEAN AS $$
DECLARE
    v_status purchase_status;
    v_payment_status payment_status;
BEGIN
    SELECT status INTO v_payment_status FROM pending_payments WHERE id = p_payment_id;
    IF NOT FOUND THEN
        RAISE EXCEPTION 'payment % not found', p_payment_id;
    END IF;
    IF v_payment_status <> 'succeeded' THEN
        RAISE EXCEPTION 'payment % is not succeeded', p_payment_id;
    END IF;

    SELECT status INTO v_status FROM purchase_records WHERE payment_id = p_payment_id FOR UPDATE;
    IF NOT FOUND THEN
        RAISE EXCEPTION 'purchase for payment % not found', p_payment_id;
    END IF;

    IF v_status = 'activated' THEN
        RETURN TRUE;
    END IF;

    UPDATE purchase_records
    SET status = 'activated', activated_at = now(), updated_at = now()
    WHERE payment_id = p_payment_id;

    RETURN FALSE;
END;
$$ LANGUAGE plpgsql;`

	return db.Exec(activateFunctionSQL).Error
}
