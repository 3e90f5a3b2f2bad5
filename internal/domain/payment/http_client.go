// internal/domain/payment/http_client.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
)

// HTTPClient talks to the processor's order API with basic auth. The request
// timeout comes from configuration; a timed-out call is a failure to the
// caller, and whether the payment actually happened is settled only by the
// asynchronous confirmation.
type HTTPClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewHTTPClient creates a processor client from payment configuration
func NewHTTPClient(cfg *config.Config, log *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		keyID:     cfg.Payment.KeyID,
		keySecret: cfg.Payment.KeySecret,
		baseURL:   cfg.Payment.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Payment.Timeout,
		},
		log: log.WithField("component", "payment_client"),
	}
}

// CreateSession opens a payment session carrying the minor-unit amount
func (c *HTTPClient) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	body, err := c.call(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"amount":     session.AmountMinorUnits,
		"currency":   session.Currency,
	}).Info("payment session created")

	return &session, nil
}

func (c *HTTPClient) call(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	var reqBody []byte
	if data != nil {
		var err error
		reqBody, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("processor call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
