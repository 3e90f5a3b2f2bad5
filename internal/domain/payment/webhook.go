// internal/domain/payment/webhook.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Confirmation is the processor's out-of-band verdict on a session. It is the
// source of truth for whether a payment happened, not the synchronous call.
type Confirmation struct {
	SessionID string `json:"session_id" binding:"required"`
	PaymentID string `json:"payment_id"`
	Event     string `json:"event" binding:"required"` // captured, failed, cancelled
	Signature string `json:"signature" binding:"required"`
}

const (
	EventCaptured  = "captured"
	EventFailed    = "failed"
	EventCancelled = "cancelled"
)

// VerifySignature checks the HMAC the processor attaches to a confirmation,
// computed over "sessionID|paymentID" with the webhook secret.
func VerifySignature(secret, sessionID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignConfirmation computes the signature for a confirmation payload. Exposed
// for tests and local webhook simulation.
func SignConfirmation(secret, sessionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
