// Package mobilemoney initiates mobile-money checkout requests used to collect loan repayments.
package mobilemoney

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
)

// DefaultBaseURL is the Africa's Talking payments endpoint.
const DefaultBaseURL = "https://payments.africastalking.com"

// ErrNotConfigured is returned by a live client without credentials.
var ErrNotConfigured = errors.New("mobile money credentials not configured")

// Config configures the checkout client.
type Config struct {
	BaseURL     string
	Username    string
	APIKey      string
	ProductName string
	Currency    string
	Mock        bool
	MaxRetries  int
	Timeout     time.Duration
}

// Client represents a mobile-money checkout client
type Client struct {
	cfg      Config
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// CheckoutResponse represents a checkout request acknowledgement
type CheckoutResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Description   string `json:"description"`
}

// NewClient creates a new mobile-money client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				resp.Body.Close()
				return true
			}
			return false
		}).
		Build()

	return &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		executor: failsafe.With[*http.Response](retry),
	}
}

// InitiateCheckout asks the customer's handset to approve a payment of amount.
// reference is echoed back in the provider metadata.
func (c *Client) InitiateCheckout(ctx context.Context, phone string, amount float64, reference string) (*CheckoutResponse, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %.2f", amount)
	}
	if c.cfg.Mock {
		return c.mockCheckout(), nil
	}
	if c.cfg.Username == "" || c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]interface{}{
		"username":     c.cfg.Username,
		"productName":  c.cfg.ProductName,
		"phoneNumber":  phone,
		"currencyCode": c.cfg.Currency,
		"amount":       amount,
		"metadata":     map[string]string{"reference": reference},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/mobile/checkout/request", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("apiKey", c.cfg.APIKey)
		return c.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("checkout failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var out CheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Status != "PendingConfirmation" {
		return &out, fmt.Errorf("checkout not accepted: %s %s", out.Status, out.Description)
	}
	return &out, nil
}

// mockCheckout acknowledges the checkout without contacting a provider
func (c *Client) mockCheckout() *CheckoutResponse {
	return &CheckoutResponse{
		TransactionID: "MOCK-" + uuid.NewString(),
		Status:        "PendingConfirmation",
		Description:   "Waiting for user input",
	}
}
