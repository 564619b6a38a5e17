package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
	"github.com/casavia/billing-service/internal/middleware/auth"
	apperrors "github.com/casavia/billing-service/pkg/errors"
)

// PlansHandler serves the plan catalog and per-account plan state.
type PlansHandler struct {
	logger   *zap.Logger
	svcCfg   *config.ServiceConfig
	planRepo repository.PlanRepository
}

// NewPlansHandler creates a new plans handler
func NewPlansHandler(logger *zap.Logger, svcCfg *config.ServiceConfig, planRepo repository.PlanRepository) *PlansHandler {
	return &PlansHandler{
		logger:   logger,
		svcCfg:   svcCfg,
		planRepo: planRepo,
	}
}

// PlanInfo is one catalog entry.
type PlanInfo struct {
	PriceID  string `json:"price_id"`
	PlanTier string `json:"plan_tier"`
}

// GetPlans returns the configured price-to-tier catalog.
// GET /api/v1/plans
func (h *PlansHandler) GetPlans(c echo.Context) error {
	plans := make([]PlanInfo, 0, len(h.svcCfg.PlanMappings))
	for priceID, tier := range h.svcCfg.PlanMappings {
		plans = append(plans, PlanInfo{PriceID: priceID, PlanTier: tier})
	}

	return c.JSON(http.StatusOK, echo.Map{"plans": plans})
}

// GetCurrentPlan returns the plan state for the authenticated account. An
// account without a plan row is on the free tier.
// GET /api/v1/plans/current
func (h *PlansHandler) GetCurrentPlan(c echo.Context) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	accountID, err := uuid.Parse(user.Subject)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Token subject is not a valid account id"})
	}

	plan, err := h.planRepo.GetByAccountID(c.Request().Context(), accountID)
	if err != nil {
		apperrors.LogError(h.logger, err, "Failed to load plan",
			zap.String("account_id", accountID.String()))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load plan"})
	}

	if plan == nil {
		return c.JSON(http.StatusOK, echo.Map{
			"account_id":     accountID,
			"plan_tier":      model.PlanTierFree,
			"billing_source": model.BillingSourceStripe,
		})
	}

	return c.JSON(http.StatusOK, plan)
}
