package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Intent is the gateway's record of a created payment.
type Intent struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RefundResult reports the gateway's decision on a refund request. Only
// status "processed" counts as success.
type RefundResult struct {
	ID        string  `json:"id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

const RefundProcessed = "processed"

// Client wraps the external payment gateway's HTTP API. Calls are guarded
// by a circuit breaker so a dead gateway fails fast instead of holding
// request goroutines for the full timeout.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	breaker    *Breaker
	logger     *logrus.Logger
}

func NewClient(baseURL, secret string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: NewBreaker(BreakerConfig{
			Name:        "payment-gateway",
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		}, logger),
		logger: logger,
	}
}

// CreateIntent registers a payment intent for the given amount and returns
// the gateway's order reference. Amounts are sent in the smallest currency
// unit, as the gateway expects.
func (c *Client) CreateIntent(ctx context.Context, amount float64, receipt string) (*Intent, error) {
	c.logger.WithFields(logrus.Fields{
		"amount":  amount,
		"receipt": receipt,
	}).Info("Creating payment intent")

	body := map[string]interface{}{
		"amount":   int64(amount * 100),
		"currency": "INR",
		"receipt":  receipt,
	}

	var intent Intent
	err := c.breaker.Execute(func() error {
		return c.do(ctx, http.MethodPost, "/v1/orders", body, &intent)
	})
	if err != nil {
		return nil, fmt.Errorf("gateway intent creation failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"gateway_order_id": intent.ID,
		"status":           intent.Status,
	}).Info("Payment intent created")

	return &intent, nil
}

// Refund asks the gateway to return amount against a captured payment.
// The caller must check the returned status; anything other than
// "processed" means the money did not move back.
func (c *Client) Refund(ctx context.Context, paymentID string, amount float64) (*RefundResult, error) {
	c.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"amount":     amount,
	}).Info("Requesting refund")

	body := map[string]interface{}{
		"payment_id": paymentID,
		"amount":     int64(amount * 100),
	}

	var result RefundResult
	err := c.breaker.Execute(func() error {
		return c.do(ctx, http.MethodPost, "/v1/refunds", body, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("gateway refund failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"status":     result.Status,
	}).Info("Refund response received")

	return &result, nil
}

// ListIntents returns every intent the gateway created after since. Used
// by the reconciliation sweep to find intents with no local order row.
func (c *Client) ListIntents(ctx context.Context, since time.Time) ([]Intent, error) {
	var response struct {
		Items []Intent `json:"items"`
		Count int      `json:"count"`
	}

	path := fmt.Sprintf("/v1/orders?from=%d", since.Unix())
	err := c.breaker.Execute(func() error {
		return c.do(ctx, http.MethodGet, path, nil, &response)
	})
	if err != nil {
		return nil, fmt.Errorf("gateway intent listing failed: %w", err)
	}

	c.logger.WithField("count", response.Count).Debug("Listed gateway intents")
	return response.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned error status: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
