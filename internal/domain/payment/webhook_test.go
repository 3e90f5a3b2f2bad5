// internal/domain/payment/webhook_test.go
package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	sig := SignConfirmation("secret", "sess_1", "pay_1")

	assert.True(t, VerifySignature("secret", "sess_1", "pay_1", sig))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	sig := SignConfirmation("secret", "sess_1", "pay_1")

	assert.False(t, VerifySignature("secret", "sess_2", "pay_1", sig), "different session")
	assert.False(t, VerifySignature("secret", "sess_1", "pay_2", sig), "different payment")
	assert.False(t, VerifySignature("other", "sess_1", "pay_1", sig), "different secret")
	assert.False(t, VerifySignature("secret", "sess_1", "pay_1", ""), "missing signature")
}
