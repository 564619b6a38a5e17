package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/usecase"
	apperrors "github.com/casavia/billing-service/pkg/errors"
)

// ReconcileHandler exposes the reference reconciliation operations to
// internal callers.
type ReconcileHandler struct {
	logger    *zap.Logger
	reconcile *usecase.ReconcileService
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(logger *zap.Logger, reconcile *usecase.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		logger:    logger,
		reconcile: reconcile,
	}
}

// ReconcileRequest is a single-reference reconciliation request.
type ReconcileRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
	// EnsureMissingPayment overrides the configured lazy materialization
	// behavior for this call when set.
	EnsureMissingPayment *bool `json:"ensure_missing_payment,omitempty"`
}

// SweepRequest selects a batch sweep's candidates.
type SweepRequest struct {
	Mode  string `json:"mode" validate:"omitempty,oneof=stuck receipts batch"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=500"`
}

// ReconcileReference reconciles one payment reference against the provider.
// POST /api/v1/internal/reconcile
func (h *ReconcileHandler) ReconcileReference(c echo.Context) error {
	var req ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	var outcome *usecase.ReferenceOutcome
	var err error
	if req.EnsureMissingPayment != nil {
		outcome, err = h.reconcile.ReconcileReferenceWithMaterialize(c.Request().Context(), req.Reference, *req.EnsureMissingPayment)
	} else {
		outcome, err = h.reconcile.ReconcileReference(c.Request().Context(), req.Reference)
	}
	if err != nil {
		apperrors.LogError(h.logger, err, "Reconciliation failed",
			zap.String("reference", req.Reference))
		code := apperrors.Classify(err)
		return c.JSON(apperrors.ToHTTPStatus(code), echo.Map{
			"error":     "Reconciliation failed",
			"code":      code,
			"reference": req.Reference,
		})
	}

	return c.JSON(http.StatusOK, outcome)
}

// Sweep runs a batch reconciliation sweep.
// POST /api/v1/internal/reconcile/sweep
func (h *ReconcileHandler) Sweep(c echo.Context) error {
	var req SweepRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	mode := usecase.SweepMode(req.Mode)
	if mode == "" {
		mode = usecase.SweepModeBatch
	}

	summary, err := h.reconcile.Sweep(c.Request().Context(), mode, req.Limit)
	if err != nil {
		apperrors.LogError(h.logger, err, "Sweep failed",
			zap.String("mode", string(mode)))
		code := apperrors.Classify(err)
		return c.JSON(apperrors.ToHTTPStatus(code), echo.Map{
			"error": "Sweep failed",
			"code":  code,
		})
	}

	return c.JSON(http.StatusOK, summary)
}
