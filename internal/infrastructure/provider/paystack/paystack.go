package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/provider"
)

const defaultBaseURL = "https://api.paystack.co"

// Client calls the Paystack REST API.
type Client struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

var _ provider.TransactionVerifier = (*Client)(nil)

// NewClient creates a Paystack client from service configuration.
func NewClient(cfg *config.PaystackConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		secretKey: cfg.SecretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// verifyResponse mirrors GET /transaction/verify/{reference}.
type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status        string          `json:"status"`
		Reference     string          `json:"reference"`
		Amount        int64           `json:"amount"`
		Currency      string          `json:"currency"`
		PaidAt        string          `json:"paid_at"`
		Metadata      json.RawMessage `json:"metadata"`
		Authorization struct {
			AuthorizationCode string `json:"authorization_code"`
		} `json:"authorization"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// rawMetadata tolerates both numeric and string values for the fields the
// dashboard-initiated flow writes as strings.
type rawMetadata struct {
	TargetResourceID string          `json:"target_resource_id"`
	Plan             string          `json:"plan"`
	DurationDays     json.RawMessage `json:"duration_days"`
	RequesterID      string          `json:"requester"`
}

// VerifyTransaction confirms the true state of a transaction reference
// against Paystack's records.
// GET /transaction/verify/{reference}
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*provider.VerifyResult, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("PaystackClient: Verify request failed",
			zap.String("reference", reference),
			zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "Paystack API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.Unmarshal(respBody, &errResp)

		c.logger.Error("PaystackClient: Verify failed",
			zap.String("reference", reference),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		message, _ := errResp["message"].(string)

		return nil, &provider.ProviderError{
			Code:    strconv.Itoa(resp.StatusCode),
			Message: message,
			Details: string(respBody),
		}
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	if !parsed.Status {
		return nil, &provider.ProviderError{
			Code:    "VERIFY_REJECTED",
			Message: parsed.Message,
			Details: string(respBody),
		}
	}

	result := &provider.VerifyResult{
		OK:            parsed.Data.Status == "success",
		Status:        parsed.Data.Status,
		Reference:     parsed.Data.Reference,
		AmountMinor:   parsed.Data.Amount,
		Currency:      parsed.Data.Currency,
		AuthCode:      parsed.Data.Authorization.AuthorizationCode,
		CustomerEmail: parsed.Data.Customer.Email,
		Metadata:      parseMetadata(parsed.Data.Metadata),
	}

	if parsed.Data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, parsed.Data.PaidAt); err == nil {
			result.PaidAt = &paidAt
		}
	}

	c.logger.Info("PaystackClient: Transaction verified",
		zap.String("reference", reference),
		zap.String("status", result.Status),
		zap.Int64("amount", result.AmountMinor))

	return result, nil
}

func parseMetadata(raw json.RawMessage) provider.PurchaseMetadata {
	var meta provider.PurchaseMetadata
	if len(raw) == 0 {
		return meta
	}

	var parsed rawMetadata
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return meta
	}

	meta.TargetResourceID = parsed.TargetResourceID
	meta.Plan = parsed.Plan
	meta.RequesterID = parsed.RequesterID

	if len(parsed.DurationDays) > 0 {
		var days int
		if err := json.Unmarshal(parsed.DurationDays, &days); err == nil {
			meta.DurationDays = days
		} else {
			var s string
			if err := json.Unmarshal(parsed.DurationDays, &s); err == nil {
				if n, err := strconv.Atoi(s); err == nil {
					meta.DurationDays = n
				}
			}
		}
	}

	return meta
}
