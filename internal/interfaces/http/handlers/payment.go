// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// PaymentHandler handles the processor's webhook callbacks
type PaymentHandler struct {
	orchestrator *checkout.Orchestrator
	config       *config.Config
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orchestrator *checkout.Orchestrator, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orchestrator,
		config:       cfg,
	}
}

// Webhook handles POST /webhooks/payment. The processor's confirmation is
// the source of truth for an attempt's outcome; the signature gate keeps
// forged callbacks out.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var conf payment.Confirmation
	if err := c.ShouldBindJSON(&conf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	if !payment.VerifySignature(h.config.Payment.WebhookSecret, conf.SessionID, conf.PaymentID, conf.Signature) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid webhook signature",
		})
		return
	}

	attempt, err := h.orchestrator.Confirm(c.Request.Context(), conf.SessionID, conf.PaymentID, conf.Event)
	if err != nil {
		if errors.Is(err, checkout.ErrUnknownSession) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown payment session",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process confirmation",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Confirmation processed",
		"data": gin.H{
			"attempt_id": attempt.ID,
			"state":      attempt.State,
		},
	})
}
