package stripe

import (
	"context"

	stripesdk "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/domain/provider"
)

// Client wraps a dedicated Stripe API client. The key is bound to this
// instance rather than the SDK's package-level global, so tests and multiple
// environments can hold independent clients.
type Client struct {
	api    *client.API
	logger *zap.Logger
}

var _ provider.SubscriptionFetcher = (*Client)(nil)

// NewClient creates a Stripe client bound to the given secret key.
func NewClient(secretKey string, logger *zap.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &Client{
		api:    api,
		logger: logger,
	}
}

// GetSubscription fetches a subscription with its price items expanded, so
// callers can map the price id without a second round trip.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripesdk.Subscription, error) {
	params := &stripesdk.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		c.logger.Error("StripeClient: Failed to fetch subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "SUBSCRIPTION_FETCH_ERROR",
			Message: "Failed to fetch subscription from Stripe",
			Details: err.Error(),
		}
	}

	return sub, nil
}
