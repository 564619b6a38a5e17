package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/infrastructure/database"
	"github.com/casavia/billing-service/internal/infrastructure/notify"
	"github.com/casavia/billing-service/internal/infrastructure/provider/paystack"
	"github.com/casavia/billing-service/internal/usecase"
	"github.com/casavia/billing-service/pkg/logger"
)

// One-shot reconciliation sweep, meant to run from cron.
func main() {
	mode := flag.String("mode", string(usecase.SweepModeBatch), "sweep mode: stuck, receipts or batch")
	limit := flag.Int("limit", 0, "max references to scan (0 = configured default)")
	reference := flag.String("reference", "", "reconcile a single reference instead of sweeping")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db, zapLogger)

	repos := database.NewRepositories(db, zapLogger)

	paystackClient := paystack.NewClient(&cfg.Service.Paystack, zapLogger)
	mailer := notify.NewMailer(&cfg.Email, zapLogger)
	reconcileService := usecase.NewReconcileService(
		&cfg.Service.Reconcile,
		repos.Payment,
		repos.Purchase,
		paystackClient,
		mailer,
		zapLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *reference != "" {
		outcome, err := reconcileService.ReconcileReference(ctx, *reference)
		if err != nil {
			zapLogger.Fatal("Reconciliation failed",
				zap.String("reference", *reference),
				zap.Error(err))
		}
		zapLogger.Info("Reference reconciled",
			zap.String("reference", outcome.Reference),
			zap.String("status", outcome.Status),
			zap.Bool("activated", outcome.Activated),
			zap.Bool("receipt_sent", outcome.ReceiptSent))
		return
	}

	summary, err := reconcileService.Sweep(ctx, usecase.SweepMode(*mode), *limit)
	if err != nil {
		zapLogger.Fatal("Sweep failed", zap.Error(err))
	}

	zapLogger.Info("Sweep finished",
		zap.String("mode", string(summary.Mode)),
		zap.Int("scanned", summary.Scanned),
		zap.Int("reconciled", summary.Reconciled),
		zap.Int("activated", summary.Activated),
		zap.Int("receipts_sent", summary.ReceiptsSent),
		zap.Int("verify_failed", summary.VerifyFailedCount),
		zap.Int("errors", summary.ErrorCount))
}
