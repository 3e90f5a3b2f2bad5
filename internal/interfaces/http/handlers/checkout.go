// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/coupon"
	"github.com/your-org/marketplace-backend/internal/pkg/money"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	manager      *cart.Manager
	coupons      *coupon.Engine
	config       *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(orchestrator *checkout.Orchestrator, manager *cart.Manager, coupons *coupon.Engine, cfg *config.Config) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator: orchestrator,
		manager:      manager,
		coupons:      coupons,
		config:       cfg,
	}
}

// BeginRequest is the payload for POST /checkout
type BeginRequest struct {
	CouponCode string `json:"coupon_code"`
}

// Begin handles POST /checkout: price the cart and open a payment session
func (h *CheckoutHandler) Begin(c *gin.Context) {
	// Body is optional; a bare POST checks out without a coupon.
	var req BeginRequest
	_ = c.ShouldBindJSON(&req)

	store, err := h.manager.StoreFor(c.Request.Context(), resolveOwner(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve cart",
		})
		return
	}

	attempt, err := h.orchestrator.Begin(c.Request.Context(), store, req.CouponCode)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment session created",
		"data":    attempt,
	})
}

// PreviewRequest is the payload for POST /checkout/coupon/preview
type PreviewRequest struct {
	CouponCode string `json:"coupon_code" binding:"required"`
}

// PreviewCoupon handles POST /checkout/coupon/preview: validate a coupon
// against the live cart subtotal without opening a session.
func (h *CheckoutHandler) PreviewCoupon(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	store, err := h.manager.StoreFor(c.Request.Context(), resolveOwner(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve cart",
		})
		return
	}

	subtotal := store.Snapshot().Subtotal()
	v, err := h.coupons.Validate(c.Request.Context(), req.CouponCode, subtotal, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Coupon lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon evaluated",
		"data":    v,
	})
}

// renderError maps checkout sentinels to HTTP status codes
func (h *CheckoutHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, money.ErrAmountOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, coupon.ErrCouponNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponExhausted),
		errors.Is(err, coupon.ErrOrderBelowMinimum):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Checkout failed"})
	}
}
