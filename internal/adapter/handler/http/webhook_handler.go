package http

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/usecase"
)

// WebhookHandler receives billing provider webhooks.
type WebhookHandler struct {
	logger        *zap.Logger
	webhookSecret string
	processor     *usecase.EventProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *zap.Logger, webhookSecret string, processor *usecase.EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		logger:        logger,
		webhookSecret: webhookSecret,
		processor:     processor,
	}
}

// HandleWebhook verifies the signature and runs the event through the
// processor. The response status tells the provider whether to retry: 2xx
// never, 4xx/5xx yes.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	event, err := webhook.ConstructEventWithOptions(
		body,
		sig,
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)

	if err != nil {
		h.logger.Error("Webhook signature verification failed",
			zap.Error(err),
		)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Webhook signature verification failed",
		})
	}

	h.logger.Info("Webhook event received",
		zap.String("type", string(event.Type)),
		zap.String("id", event.ID),
		zap.Time("created", time.Unix(event.Created, 0)),
	)

	outcome, err := h.processor.ProcessEvent(c.Request().Context(), event)
	if err != nil {
		h.logger.Error("Webhook event processing failed",
			zap.String("event_id", event.ID),
			zap.String("reason", outcome.Reason),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "Event processing failed",
			"reason": outcome.Reason,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
		"status":   outcome.Status,
		"reason":   outcome.Reason,
	})
}
