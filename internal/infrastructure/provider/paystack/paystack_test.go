package paystack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/provider"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.PaystackConfig{
		SecretKey: "sk_test_key",
		BaseURL:   serverURL,
	}, zap.NewNop())
}

func TestVerifyTransaction(t *testing.T) {
	tests := []struct {
		name               string
		reference          string
		mockServerResponse func(w http.ResponseWriter, r *http.Request)
		expectedResult     func(t *testing.T, result *provider.VerifyResult)
		expectedError      bool
	}{
		{
			name:      "successful transaction",
			reference: "ref_success",
			mockServerResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/ref_success", r.URL.Path)
				assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{
					"status": true,
					"message": "Verification successful",
					"data": {
						"status": "success",
						"reference": "ref_success",
						"amount": 500000,
						"currency": "NGN",
						"paid_at": "2026-08-01T10:15:00Z",
						"metadata": {
							"target_resource_id": "listing_42",
							"plan": "featured",
							"duration_days": "30",
							"requester": "550e8400-e29b-41d4-a716-446655440000"
						},
						"authorization": {"authorization_code": "AUTH_xyz"},
						"customer": {"email": "renter@example.com"}
					}
				}`)
			},
			expectedResult: func(t *testing.T, result *provider.VerifyResult) {
				assert.True(t, result.OK)
				assert.Equal(t, "success", result.Status)
				assert.Equal(t, int64(500000), result.AmountMinor)
				assert.Equal(t, "NGN", result.Currency)
				assert.Equal(t, "AUTH_xyz", result.AuthCode)
				assert.Equal(t, "renter@example.com", result.CustomerEmail)
				assert.NotNil(t, result.PaidAt)
				assert.Equal(t, "listing_42", result.Metadata.TargetResourceID)
				assert.Equal(t, "featured", result.Metadata.Plan)
				assert.Equal(t, 30, result.Metadata.DurationDays)
			},
		},
		{
			name:      "abandoned transaction",
			reference: "ref_abandoned",
			mockServerResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{
					"status": true,
					"message": "Verification successful",
					"data": {
						"status": "abandoned",
						"reference": "ref_abandoned",
						"amount": 500000,
						"currency": "NGN"
					}
				}`)
			},
			expectedResult: func(t *testing.T, result *provider.VerifyResult) {
				assert.False(t, result.OK)
				assert.Equal(t, "abandoned", result.Status)
			},
		},
		{
			name:      "numeric duration_days metadata",
			reference: "ref_numeric",
			mockServerResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{
					"status": true,
					"data": {
						"status": "success",
						"reference": "ref_numeric",
						"amount": 100,
						"currency": "NGN",
						"metadata": {"target_resource_id": "listing_1", "duration_days": 14}
					}
				}`)
			},
			expectedResult: func(t *testing.T, result *provider.VerifyResult) {
				assert.True(t, result.OK)
				assert.Equal(t, 14, result.Metadata.DurationDays)
			},
		},
		{
			name:      "unknown reference",
			reference: "ref_missing",
			mockServerResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"status": false, "message": "Transaction reference not found"}`)
			},
			expectedError: true,
		},
		{
			name:      "api rejection",
			reference: "ref_rejected",
			mockServerResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"status": false, "message": "Invalid key"}`)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.mockServerResponse))
			defer server.Close()

			client := newTestClient(server.URL)
			result, err := client.VerifyTransaction(context.Background(), tt.reference)

			if tt.expectedError {
				assert.Error(t, err)
				var providerErr *provider.ProviderError
				assert.ErrorAs(t, err, &providerErr)
				return
			}

			assert.NoError(t, err)
			assert.NotNil(t, result)
			tt.expectedResult(t, result)
		})
	}
}
