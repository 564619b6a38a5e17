package config

import "time"

type ServiceConfig struct {
	Name                string          `yaml:"name"`
	Environment         string          `yaml:"environment"`
	Version             string          `yaml:"version"`
	ClientURL           string          `yaml:"client_url"`
	StripeSecretKey     string          `yaml:"stripe_secret_key"`
	StripeWebhookSecret string          `yaml:"stripe_webhook_secret"`
	Paystack            PaystackConfig  `yaml:"paystack"`
	Reconcile           ReconcileConfig `yaml:"reconcile"`

	// PlanMappings maps provider price ids to internal plan tiers. An
	// unmapped price id is an expected condition, not an error.
	PlanMappings map[string]string `yaml:"plan_mappings"`
}

type PaystackConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

type ReconcileConfig struct {
	// StuckAfter is how long an initialized/pending payment must sit before
	// the batch sweep treats it as a candidate.
	StuckAfter time.Duration `yaml:"stuck_after"`
	BatchLimit int           `yaml:"batch_limit"`
	// EnsureMissingPayment enables lazy materialization of a local payment
	// record from verified provider data during reconciliation.
	EnsureMissingPayment bool `yaml:"ensure_missing_payment"`
}

// defaultPlanMappings is the compiled-in price table used when the config
// file does not override plan_mappings.
var defaultPlanMappings = map[string]string{
	"price_starter_monthly":    "starter",
	"price_starter_yearly":     "starter",
	"price_pro_monthly":        "pro",
	"price_pro_yearly":         "pro",
	"price_tenant_pro_monthly": "tenant_pro",
}

// TierForPrice resolves a provider price id to an internal plan tier.
func (c *ServiceConfig) TierForPrice(priceID string) (string, bool) {
	if tier, ok := c.PlanMappings[priceID]; ok {
		return tier, true
	}
	tier, ok := defaultPlanMappings[priceID]
	return tier, ok
}

// StuckAfter returns the configured stale threshold, defaulting to 30 minutes.
func (c *ReconcileConfig) StuckThreshold() time.Duration {
	if c.StuckAfter <= 0 {
		return 30 * time.Minute
	}
	return c.StuckAfter
}

// Limit returns the configured batch limit, defaulting to 50.
func (c *ReconcileConfig) Limit() int {
	if c.BatchLimit <= 0 {
		return 50
	}
	return c.BatchLimit
}
