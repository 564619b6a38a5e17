package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/model"
	"github.com/casavia/billing-service/internal/domain/repository"
	"github.com/casavia/billing-service/internal/usecase"
)

// MockPlanRepository is a mock implementation of PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.PlanState, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlanState), args.Error(1)
}

func (m *MockPlanRepository) FindByCustomerID(ctx context.Context, customerID string) (*model.PlanState, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlanState), args.Error(1)
}

func (m *MockPlanRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.PlanState, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlanState), args.Error(1)
}

func (m *MockPlanRepository) Upsert(ctx context.Context, plan *model.PlanState) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

// MockEventLedgerRepository is a mock implementation of EventLedgerRepository
type MockEventLedgerRepository struct {
	mock.Mock
}

func (m *MockEventLedgerRepository) Record(ctx context.Context, eventID, eventType string) error {
	args := m.Called(ctx, eventID, eventType)
	return args.Error(0)
}

// MockSubscriptionFetcher is a mock implementation of SubscriptionFetcher
type MockSubscriptionFetcher struct {
	mock.Mock
}

func (m *MockSubscriptionFetcher) GetSubscription(ctx context.Context, subscriptionID string) (*stripesdk.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.Subscription), args.Error(1)
}

func subscriptionEvent(t *testing.T, eventType stripesdk.EventType, priceID, status string, periodEnd time.Time) stripesdk.Event {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"id":                 "sub_123",
		"customer":           "cus_123",
		"status":             status,
		"current_period_end": periodEnd.Unix(),
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"price": map[string]interface{}{"id": priceID}},
			},
		},
	})
	assert.NoError(t, err)

	return stripesdk.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripesdk.EventData{Raw: raw},
	}
}

func newProcessor(planRepo *MockPlanRepository, ledger *MockEventLedgerRepository, fetcher *MockSubscriptionFetcher) *usecase.EventProcessor {
	logger := zap.NewNop()
	svcCfg := &config.ServiceConfig{}
	observer := usecase.NewObserver(nil, logger)
	return usecase.NewEventProcessor(svcCfg, planRepo, ledger, fetcher, observer, logger)
}

func TestEventProcessor_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate delivery short-circuits before any plan read", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_pro_monthly", "active", time.Now().Add(30*24*time.Hour))
		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(repository.ErrAlreadyProcessed)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeDuplicate, outcome.Status)
		planRepo.AssertNotCalled(t, "FindByCustomerID", mock.Anything, mock.Anything)
		planRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("ledger failure is retryable", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_pro_monthly", "active", time.Now().Add(30*24*time.Hour))
		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(fmt.Errorf("connection refused"))

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.Error(t, err)
		assert.Equal(t, usecase.OutcomeFailed, outcome.Status)
	})
}

func TestEventProcessor_SubscriptionUpdated(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("active subscription updates the plan", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		periodEnd := time.Now().Add(30 * 24 * time.Hour)
		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_pro_monthly", "active", periodEnd)

		existing := &model.PlanState{
			AccountID:     accountID,
			PlanTier:      model.PlanTierStarter,
			BillingSource: model.BillingSourceStripe,
		}

		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		planRepo.On("FindByCustomerID", ctx, "cus_123").Return(existing, nil)
		planRepo.On("Upsert", ctx, mock.MatchedBy(func(plan *model.PlanState) bool {
			return plan.AccountID == accountID &&
				plan.PlanTier == model.PlanTierPro &&
				plan.BillingSource == model.BillingSourceStripe &&
				plan.ProviderSubscriptionID == "sub_123" &&
				plan.ValidUntil != nil
		})).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeApplied, outcome.Status)
		planRepo.AssertExpectations(t)
	})

	t.Run("unmapped price is acknowledged and ignored", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_some_other_product", "active", time.Now().Add(30*24*time.Hour))
		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeIgnored, outcome.Status)
		assert.Equal(t, usecase.ReasonMissingPlanMap, outcome.Reason)
		planRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("unknown customer is acknowledged and ignored", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_pro_monthly", "active", time.Now().Add(30*24*time.Hour))
		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		planRepo.On("FindByCustomerID", ctx, "cus_123").Return(nil, nil)
		planRepo.On("FindBySubscriptionID", ctx, "sub_123").Return(nil, nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeIgnored, outcome.Status)
		assert.Equal(t, usecase.ReasonMissingProfileID, outcome.Reason)
		planRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("manual override blocks the write", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionUpdated,
			"price_pro_monthly", "active", time.Now().Add(30*24*time.Hour))

		manual := &model.PlanState{
			AccountID:     accountID,
			PlanTier:      model.PlanTierTenantPro,
			BillingSource: model.BillingSourceManual,
		}

		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		planRepo.On("FindByCustomerID", ctx, "cus_123").Return(manual, nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeIgnored, outcome.Status)
		assert.Equal(t, "manual_override", outcome.Reason)
		planRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestEventProcessor_SubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("deletion downgrades to free", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionDeleted,
			"price_pro_monthly", "canceled", time.Now().Add(10*24*time.Hour))

		existing := &model.PlanState{
			AccountID:     accountID,
			PlanTier:      model.PlanTierPro,
			BillingSource: model.BillingSourceStripe,
		}

		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		planRepo.On("FindByCustomerID", ctx, "cus_123").Return(existing, nil)
		planRepo.On("Upsert", ctx, mock.MatchedBy(func(plan *model.PlanState) bool {
			return plan.PlanTier == model.PlanTierFree && plan.ValidUntil == nil
		})).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeApplied, outcome.Status)
		planRepo.AssertExpectations(t)
	})

	t.Run("deletion with unmapped price still downgrades", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := subscriptionEvent(t, stripesdk.EventTypeCustomerSubscriptionDeleted,
			"price_retired_plan", "canceled", time.Now().Add(10*24*time.Hour))

		existing := &model.PlanState{
			AccountID:     accountID,
			PlanTier:      model.PlanTierPro,
			BillingSource: model.BillingSourceStripe,
		}

		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		planRepo.On("FindByCustomerID", ctx, "cus_123").Return(existing, nil)
		planRepo.On("Upsert", ctx, mock.MatchedBy(func(plan *model.PlanState) bool {
			return plan.PlanTier == model.PlanTierFree
		})).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeApplied, outcome.Status)
	})
}

func TestEventProcessor_UnhandledEvent(t *testing.T) {
	ctx := context.Background()

	planRepo := new(MockPlanRepository)
	ledger := new(MockEventLedgerRepository)
	fetcher := new(MockSubscriptionFetcher)
	processor := newProcessor(planRepo, ledger, fetcher)

	event := stripesdk.Event{
		ID:   "evt_unhandled",
		Type: "customer.created",
		Data: &stripesdk.EventData{Raw: json.RawMessage(`{}`)},
	}
	ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)

	outcome, err := processor.ProcessEvent(ctx, event)

	assert.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome.Status)
	assert.Equal(t, usecase.ReasonUnhandledEvent, outcome.Reason)
	ledger.AssertExpectations(t)
}

func TestEventProcessor_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("checkout hint maps a brand-new customer", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		raw, err := json.Marshal(map[string]interface{}{
			"id":                  "cs_123",
			"client_reference_id": accountID.String(),
			"subscription":        "sub_123",
			"customer":            "cus_123",
		})
		assert.NoError(t, err)

		event := stripesdk.Event{
			ID:   "evt_checkout",
			Type: stripesdk.EventTypeCheckoutSessionCompleted,
			Data: &stripesdk.EventData{Raw: raw},
		}

		periodEnd := time.Now().Add(30 * 24 * time.Hour)
		sub := &stripesdk.Subscription{
			ID:               "sub_123",
			Customer:         &stripesdk.Customer{ID: "cus_123"},
			Status:           stripesdk.SubscriptionStatusActive,
			CurrentPeriodEnd: periodEnd.Unix(),
			Items: &stripesdk.SubscriptionItemList{
				Data: []*stripesdk.SubscriptionItem{
					{Price: &stripesdk.Price{ID: "price_starter_monthly"}},
				},
			},
		}

		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)
		fetcher.On("GetSubscription", ctx, "sub_123").Return(sub, nil)
		planRepo.On("GetByAccountID", ctx, accountID).Return(nil, nil)
		planRepo.On("Upsert", ctx, mock.MatchedBy(func(plan *model.PlanState) bool {
			return plan.AccountID == accountID &&
				plan.PlanTier == model.PlanTierStarter &&
				plan.ProviderCustomerID == "cus_123"
		})).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeApplied, outcome.Status)
		planRepo.AssertExpectations(t)
		fetcher.AssertExpectations(t)
	})

	t.Run("one-off checkout without subscription is ignored", func(t *testing.T) {
		planRepo := new(MockPlanRepository)
		ledger := new(MockEventLedgerRepository)
		fetcher := new(MockSubscriptionFetcher)
		processor := newProcessor(planRepo, ledger, fetcher)

		event := stripesdk.Event{
			ID:   "evt_oneoff",
			Type: stripesdk.EventTypeCheckoutSessionCompleted,
			Data: &stripesdk.EventData{Raw: json.RawMessage(`{"id":"cs_456","mode":"payment"}`)},
		}
		ledger.On("Record", ctx, event.ID, string(event.Type)).Return(nil)

		outcome, err := processor.ProcessEvent(ctx, event)

		assert.NoError(t, err)
		assert.Equal(t, usecase.OutcomeIgnored, outcome.Status)
		assert.Equal(t, usecase.ReasonNotSubscription, outcome.Reason)
		fetcher.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})
}
