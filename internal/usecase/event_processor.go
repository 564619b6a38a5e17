package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/billing"
	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/provider"
	"github.com/casavia/billing-service/internal/domain/repository"
)

// Outcome statuses for a processed webhook event.
const (
	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Ignore reasons reported back in webhook responses.
const (
	ReasonUnhandledEvent    = "unhandled_event"
	ReasonMissingPlanMap    = "missing_plan_mapping"
	ReasonMissingProfileID  = "missing_profile_id"
	ReasonMissingPriceID    = "missing_price_id"
	ReasonNotSubscription   = "not_subscription_checkout"
	ReasonHandlerError      = "handler_error"
	ReasonLedgerError       = "ledger_error"
	ReasonPlanUpdateFailed  = "plan_update_failed"
	ReasonSubscriptionFetch = "subscription_fetch_error"
)

// Outcome is the result of processing a single provider event.
type Outcome struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// EventProcessor turns verified provider events into plan state writes.
type EventProcessor struct {
	svcCfg   *config.ServiceConfig
	planRepo repository.PlanRepository
	ledger   repository.EventLedgerRepository
	stripe   provider.SubscriptionFetcher
	observer *Observer
	logger   *zap.Logger
}

// NewEventProcessor creates the webhook event processor.
func NewEventProcessor(
	svcCfg *config.ServiceConfig,
	planRepo repository.PlanRepository,
	ledger repository.EventLedgerRepository,
	stripe provider.SubscriptionFetcher,
	observer *Observer,
	logger *zap.Logger,
) *EventProcessor {
	return &EventProcessor{
		svcCfg:   svcCfg,
		planRepo: planRepo,
		ledger:   ledger,
		stripe:   stripe,
		observer: observer,
		logger:   logger,
	}
}

// ProcessEvent runs one verified provider event through the idempotency
// ledger, normalization, decision and persistence pipeline. The returned
// error is non-nil only when Status is failed; the caller answers the
// provider with a retryable status in that case.
func (p *EventProcessor) ProcessEvent(ctx context.Context, event stripesdk.Event) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic while processing event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
			out = Outcome{Status: OutcomeFailed, Reason: ReasonHandlerError}
			err = fmt.Errorf("panic processing event %s: %v", event.ID, r)
		}
		p.observer.WebhookApplied(WebhookAppliedEvent{
			EventID:   event.ID,
			EventType: string(event.Type),
			Status:    out.Status,
			Reason:    out.Reason,
		})
		if out.Status == OutcomeFailed {
			p.observer.HandlerFailure(HandlerFailureEvent{
				EventID:   event.ID,
				EventType: string(event.Type),
				Error:     out.Reason,
			})
		}
	}()

	// Record the event id before any side effect. A duplicate delivery
	// short-circuits with success so the provider stops retrying.
	if recordErr := p.ledger.Record(ctx, event.ID, string(event.Type)); recordErr != nil {
		if errors.Is(recordErr, repository.ErrAlreadyProcessed) {
			p.logger.Info("Duplicate event delivery",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			return Outcome{Status: OutcomeDuplicate}, nil
		}
		return Outcome{Status: OutcomeFailed, Reason: ReasonLedgerError},
			fmt.Errorf("failed to record event %s: %w", event.ID, recordErr)
	}

	normalized, outcome, normErr := p.normalize(ctx, event)
	if normErr != nil {
		return outcome, normErr
	}
	if normalized == nil {
		return outcome, nil
	}

	return p.apply(ctx, normalized)
}

// normalize reduces a raw provider event to a SubscriptionEvent. A nil event
// with a nil error means the event was ignored; the outcome carries the
// reason.
func (p *EventProcessor) normalize(ctx context.Context, event stripesdk.Event) (*billing.SubscriptionEvent, Outcome, error) {
	switch event.Type {
	case stripesdk.EventTypeCheckoutSessionCompleted:
		return p.normalizeCheckout(ctx, event)

	case stripesdk.EventTypeCustomerSubscriptionCreated,
		stripesdk.EventTypeCustomerSubscriptionUpdated,
		stripesdk.EventTypeCustomerSubscriptionDeleted:
		return p.normalizeSubscription(event)

	case stripesdk.EventTypeInvoicePaid,
		stripesdk.EventTypeInvoicePaymentFailed:
		return p.normalizeInvoice(ctx, event)

	default:
		p.logger.Debug("Ignoring unhandled event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil, Outcome{Status: OutcomeIgnored, Reason: ReasonUnhandledEvent}, nil
	}
}

func (p *EventProcessor) normalizeCheckout(ctx context.Context, event stripesdk.Event) (*billing.SubscriptionEvent, Outcome, error) {
	var session stripesdk.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, Outcome{Status: OutcomeFailed, Reason: ReasonHandlerError},
			fmt.Errorf("failed to parse checkout session: %w", err)
	}

	// One-off checkouts carry no subscription; those flows are reconciled
	// by reference instead.
	if session.Subscription == nil || session.Subscription.ID == "" {
		return nil, Outcome{Status: OutcomeIgnored, Reason: ReasonNotSubscription}, nil
	}

	// The checkout payload only names the subscription; fetch the live
	// object for price, status and period end.
	sub, err := p.stripe.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return nil, Outcome{Status: OutcomeFailed, Reason: ReasonSubscriptionFetch},
			fmt.Errorf("failed to fetch subscription %s: %w", session.Subscription.ID, err)
	}

	normalized := subscriptionToEvent(billing.EventCheckoutCompleted, event.ID, sub)
	normalized.AccountHint = session.ClientReferenceID
	if normalized.AccountHint == "" {
		normalized.AccountHint = session.Metadata["account_id"]
	}
	return normalized, Outcome{}, nil
}

func (p *EventProcessor) normalizeSubscription(event stripesdk.Event) (*billing.SubscriptionEvent, Outcome, error) {
	var sub stripesdk.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, Outcome{Status: OutcomeFailed, Reason: ReasonHandlerError},
			fmt.Errorf("failed to parse subscription: %w", err)
	}

	kind := billing.EventSubscriptionUpdated
	switch event.Type {
	case stripesdk.EventTypeCustomerSubscriptionCreated:
		kind = billing.EventSubscriptionCreated
	case stripesdk.EventTypeCustomerSubscriptionDeleted:
		kind = billing.EventSubscriptionDeleted
	}

	normalized := subscriptionToEvent(kind, event.ID, &sub)
	normalized.AccountHint = sub.Metadata["account_id"]
	if kind == billing.EventSubscriptionDeleted {
		normalized.AllowImmediateDowngrade = true
	}
	return normalized, Outcome{}, nil
}

func (p *EventProcessor) normalizeInvoice(ctx context.Context, event stripesdk.Event) (*billing.SubscriptionEvent, Outcome, error) {
	var invoice stripesdk.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, Outcome{Status: OutcomeFailed, Reason: ReasonHandlerError},
			fmt.Errorf("failed to parse invoice: %w", err)
	}

	// One-off invoices without a subscription have no plan to touch.
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return nil, Outcome{Status: OutcomeIgnored, Reason: ReasonNotSubscription}, nil
	}

	// Invoice payloads mirror stale subscription state; fetch the live
	// object so renewals extend the period and failures see the real
	// status.
	sub, err := p.stripe.GetSubscription(ctx, invoice.Subscription.ID)
	if err != nil {
		return nil, Outcome{Status: OutcomeFailed, Reason: ReasonSubscriptionFetch},
			fmt.Errorf("failed to fetch subscription %s: %w", invoice.Subscription.ID, err)
	}

	kind := billing.EventInvoicePaid
	if event.Type == stripesdk.EventTypeInvoicePaymentFailed {
		kind = billing.EventInvoicePaymentFailed
	}
	return subscriptionToEvent(kind, event.ID, sub), Outcome{}, nil
}

// apply resolves the account, runs the decision function and persists the
// result.
func (p *EventProcessor) apply(ctx context.Context, ev *billing.SubscriptionEvent) (Outcome, error) {
	tier, mapped := p.svcCfg.TierForPrice(ev.PriceID)
	if !mapped && !ev.AllowImmediateDowngrade {
		// An unknown price is expected when other products share the
		// Stripe account. Acknowledge and move on.
		p.logger.Info("Ignoring event with unmapped price",
			zap.String("event_id", ev.EventID),
			zap.String("price_id", ev.PriceID))
		if ev.PriceID == "" {
			return Outcome{Status: OutcomeIgnored, Reason: ReasonMissingPriceID}, nil
		}
		return Outcome{Status: OutcomeIgnored, Reason: ReasonMissingPlanMap}, nil
	}

	accountID, existing, err := p.resolveAccount(ctx, ev)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: ReasonHandlerError}, err
	}
	if accountID == uuid.Nil {
		p.logger.Warn("No account mapped to provider identifiers",
			zap.String("event_id", ev.EventID),
			zap.String("customer_id", ev.CustomerID),
			zap.String("subscription_id", ev.SubscriptionID))
		return Outcome{Status: OutcomeIgnored, Reason: ReasonMissingProfileID}, nil
	}

	decision := billing.DecidePlanUpdate(billing.DecisionInput{
		Tier:                    model.PlanTier(tier),
		Status:                  ev.Status,
		CurrentPeriodEnd:        ev.CurrentPeriodEnd,
		AllowImmediateDowngrade: ev.AllowImmediateDowngrade,
		CustomerID:              ev.CustomerID,
		SubscriptionID:          ev.SubscriptionID,
		PriceID:                 ev.PriceID,
	}, existing, time.Now())

	if decision.Skip {
		p.logger.Info("Plan update skipped",
			zap.String("event_id", ev.EventID),
			zap.String("account_id", accountID.String()),
			zap.String("reason", decision.SkipReason))
		return Outcome{Status: OutcomeIgnored, Reason: decision.SkipReason}, nil
	}

	plan := &model.PlanState{
		AccountID:              accountID,
		PlanTier:               decision.PlanTier,
		BillingSource:          model.BillingSourceStripe,
		ValidUntil:             decision.ValidUntil,
		ProviderCustomerID:     ev.CustomerID,
		ProviderSubscriptionID: ev.SubscriptionID,
		ProviderPriceID:        ev.PriceID,
		ProviderStatus:         ev.Status,
		ProviderPeriodEnd:      ev.CurrentPeriodEnd,
		UpdatedBy:              "stripe_webhook",
	}

	if err := p.planRepo.Upsert(ctx, plan); err != nil {
		return Outcome{Status: OutcomeFailed, Reason: ReasonPlanUpdateFailed},
			fmt.Errorf("failed to upsert plan for account %s: %w", accountID, err)
	}

	p.logger.Info("Plan updated",
		zap.String("event_id", ev.EventID),
		zap.String("account_id", accountID.String()),
		zap.String("plan_tier", string(decision.PlanTier)),
		zap.String("provider_status", ev.Status))

	p.observer.PlanUpdated(PlanUpdatedEvent{
		AccountID:  accountID.String(),
		PlanTier:   string(decision.PlanTier),
		ValidUntil: decision.ValidUntil,
		EventID:    ev.EventID,
		EventType:  string(ev.Kind),
	})
	p.notifyPaymentFailed(ev, accountID)

	return Outcome{Status: OutcomeApplied}, nil
}

// resolveAccount maps provider identifiers to an account. The checkout hint
// wins when present; otherwise the mirrored provider columns are consulted.
// A full miss returns uuid.Nil with no error.
func (p *EventProcessor) resolveAccount(ctx context.Context, ev *billing.SubscriptionEvent) (uuid.UUID, *model.PlanState, error) {
	if ev.AccountHint != "" {
		if accountID, err := uuid.Parse(ev.AccountHint); err == nil {
			existing, err := p.planRepo.GetByAccountID(ctx, accountID)
			if err != nil {
				return uuid.Nil, nil, fmt.Errorf("failed to load plan for account %s: %w", accountID, err)
			}
			return accountID, existing, nil
		}
		p.logger.Warn("Malformed account hint in provider metadata",
			zap.String("event_id", ev.EventID),
			zap.String("hint", ev.AccountHint))
	}

	if ev.CustomerID != "" {
		existing, err := p.planRepo.FindByCustomerID(ctx, ev.CustomerID)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("failed to find plan by customer %s: %w", ev.CustomerID, err)
		}
		if existing != nil {
			return existing.AccountID, existing, nil
		}
	}

	if ev.SubscriptionID != "" {
		existing, err := p.planRepo.FindBySubscriptionID(ctx, ev.SubscriptionID)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("failed to find plan by subscription %s: %w", ev.SubscriptionID, err)
		}
		if existing != nil {
			return existing.AccountID, existing, nil
		}
	}

	return uuid.Nil, nil, nil
}

func (p *EventProcessor) notifyPaymentFailed(ev *billing.SubscriptionEvent, accountID uuid.UUID) {
	if ev.Kind != billing.EventInvoicePaymentFailed {
		return
	}
	p.observer.PaymentFailed(PaymentFailedEvent{
		AccountID:  accountID.String(),
		CustomerID: ev.CustomerID,
		EventID:    ev.EventID,
	})
}

// subscriptionToEvent flattens a provider subscription into the normalized
// event shape.
func subscriptionToEvent(kind billing.EventKind, eventID string, sub *stripesdk.Subscription) *billing.SubscriptionEvent {
	ev := &billing.SubscriptionEvent{
		Kind:           kind,
		EventID:        eventID,
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}

	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &periodEnd
	}

	return ev
}
