package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/casavia/billing-service/pkg/messaging"
)

// Pub/sub channels for billing lifecycle events.
const (
	ChannelPlanUpdated    = "billing.plan_updated"
	ChannelPaymentFailed  = "billing.payment_failed"
	ChannelWebhookApplied = "billing.webhook_applied"
	ChannelHandlerFailure = "billing.handler_failure"
)

// Observer publishes billing lifecycle events to interested services.
// Emission is fire-and-forget: a publish failure is logged and swallowed so
// observability never changes a webhook response.
type Observer struct {
	redis  messaging.RedisClient
	logger *zap.Logger
}

// NewObserver creates an observer. A nil redis client disables publishing.
func NewObserver(redis messaging.RedisClient, logger *zap.Logger) *Observer {
	return &Observer{
		redis:  redis,
		logger: logger,
	}
}

// PlanUpdatedEvent is published whenever a plan row is written from a
// provider event.
type PlanUpdatedEvent struct {
	AccountID  string     `json:"account_id"`
	PlanTier   string     `json:"plan_tier"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	EventID    string     `json:"event_id"`
	EventType  string     `json:"event_type"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PaymentFailedEvent is published when the provider reports a failed
// recurring charge.
type PaymentFailedEvent struct {
	AccountID  string    `json:"account_id"`
	CustomerID string    `json:"customer_id"`
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WebhookAppliedEvent is published for every processed webhook, including
// ignored ones, with the outcome attached.
type WebhookAppliedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HandlerFailureEvent is published when event processing fails hard.
type HandlerFailureEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (o *Observer) PlanUpdated(event PlanUpdatedEvent) {
	event.OccurredAt = time.Now()
	o.publish(ChannelPlanUpdated, event)
}

func (o *Observer) PaymentFailed(event PaymentFailedEvent) {
	event.OccurredAt = time.Now()
	o.publish(ChannelPaymentFailed, event)
}

func (o *Observer) WebhookApplied(event WebhookAppliedEvent) {
	event.OccurredAt = time.Now()
	o.publish(ChannelWebhookApplied, event)
}

func (o *Observer) HandlerFailure(event HandlerFailureEvent) {
	event.OccurredAt = time.Now()
	o.publish(ChannelHandlerFailure, event)
}

// publish runs detached from the caller's request context so a slow broker
// cannot delay the webhook response.
func (o *Observer) publish(channel string, message interface{}) {
	if o.redis == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := o.redis.Publish(ctx, channel, message); err != nil {
			o.logger.Warn("Failed to publish billing event",
				zap.String("channel", channel),
				zap.Error(err))
		}
	}()
}
