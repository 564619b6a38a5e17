package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/casavia/billing-service/internal/adapter/handler/http"
	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/infrastructure/database"
	"github.com/casavia/billing-service/internal/infrastructure/notify"
	"github.com/casavia/billing-service/internal/infrastructure/provider/paystack"
	stripeclient "github.com/casavia/billing-service/internal/infrastructure/provider/stripe"
	"github.com/casavia/billing-service/internal/middleware/auth"
	"github.com/casavia/billing-service/internal/usecase"
	apperrors "github.com/casavia/billing-service/pkg/errors"
	"github.com/casavia/billing-service/pkg/messaging"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	repos  *database.Repositories
	redis  messaging.RedisClient
}

// requestValidator adapts validator/v10 to echo's Validator interface.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories, redis messaging.RedisClient) *Server {
	e := echo.New()
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		httpErr := apperrors.ToHTTPError(err)
		if !c.Response().Committed {
			if jsonErr := c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message}); jsonErr != nil {
				logger.Error("Failed to write error response", zap.Error(jsonErr))
			}
		}
	}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		repos:  repos,
		redis:  redis,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Wire usecases
	observer := usecase.NewObserver(s.redis, s.logger)
	stripeClient := stripeclient.NewClient(s.config.Service.StripeSecretKey, s.logger)
	processor := usecase.NewEventProcessor(
		&s.config.Service,
		s.repos.Plan,
		s.repos.EventLedger,
		stripeClient,
		observer,
		s.logger,
	)

	paystackClient := paystack.NewClient(&s.config.Service.Paystack, s.logger)
	mailer := notify.NewMailer(&s.config.Email, s.logger)
	reconcileService := usecase.NewReconcileService(
		&s.config.Service.Reconcile,
		s.repos.Payment,
		s.repos.Purchase,
		paystackClient,
		mailer,
		s.logger,
	)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.config.Service.StripeWebhookSecret, processor)
	reconcileHandler := handlers.NewReconcileHandler(s.logger, reconcileService)
	plansHandler := handlers.NewPlansHandler(s.logger, &s.config.Service, s.repos.Plan)

	// Provider webhooks authenticate by signature, not JWT
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.GetPlans)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))
	protected.GET("/plans/current", plansHandler.GetCurrentPlan)

	internal := protected.Group("/internal")
	internal.POST("/reconcile", reconcileHandler.ReconcileReference)
	internal.POST("/reconcile/sweep", reconcileHandler.Sweep)
}
