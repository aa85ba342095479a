package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTokenRejected means the provider refused the device token; retrying
// the same token cannot succeed.
var ErrTokenRejected = errors.New("device token rejected by push provider")

// Gateway posts push messages to the external push provider. The URL is
// the provider's full send endpoint.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewGateway(baseURL, apiKey string, logger *logrus.Logger) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (g *Gateway) Send(ctx context.Context, token, title, body, link string) error {
	payload := map[string]interface{}{
		"to": token,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
		"data": map[string]string{
			"link": link,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach push provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Stale or malformed token; a retry with the same token is pointless.
		return fmt.Errorf("push provider status %d: %w", resp.StatusCode, ErrTokenRejected)
	default:
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
}
