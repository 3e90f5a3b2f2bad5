// internal/domain/payment/client.go
package payment

import (
	"context"
)

// CreateSessionRequest carries what the processor needs to open one payment
// attempt. Amounts cross this boundary exclusively as integer minor units.
type CreateSessionRequest struct {
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Reference        string            `json:"receipt"`
	Metadata         map[string]string `json:"notes,omitempty"`
}

// Session is the processor's handle for one payment attempt
type Session struct {
	ID               string            `json:"id"`
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Reference        string            `json:"receipt"`
	Metadata         map[string]string `json:"notes"`
	CreatedAt        int64             `json:"created_at"`
}

// Client is the payment processor boundary. The orchestrator receives an
// implementation by injection so checkout is testable without a live
// processor; confirmations arrive out-of-band via webhook.
type Client interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
}
