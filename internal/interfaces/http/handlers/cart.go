// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-backend/internal/pkg/money"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	manager *cart.Manager
	catalog *catalog.Service
	config  *config.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(manager *cart.Manager, catalogService *catalog.Service, cfg *config.Config) *CartHandler {
	return &CartHandler{
		manager: manager,
		catalog: catalogService,
		config:  cfg,
	}
}

// resolveOwner picks the cart owner for a request: the authenticated user
// when present, otherwise the anonymous session token.
func resolveOwner(c *gin.Context) cart.Owner {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return cart.UserOwner(userID)
	}
	return cart.GuestOwner(middleware.SessionToken(c))
}

func (h *CartHandler) storeFor(c *gin.Context) (*cart.Store, bool) {
	store, err := h.manager.StoreFor(c.Request.Context(), resolveOwner(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve cart",
		})
		return nil, false
	}
	return store, true
}

// cartResponse renders a store snapshot for clients
func (h *CartHandler) cartResponse(store *cart.Store) gin.H {
	snap := store.Snapshot()
	subtotal := snap.Subtotal()
	resp := gin.H{
		"items":              snap.Items,
		"item_count":         snap.ItemCount(),
		"total_quantity":     snap.TotalQuantity(),
		"subtotal":           subtotal,
		"subtotal_formatted": money.Format(subtotal, h.config.Payment.Currency, h.config.Payment.Locale),
		"is_updating":        store.IsUpdating(),
	}
	if err := store.Err(); err != nil {
		resp["error"] = err.Error()
	}
	return resp
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	store, ok := h.storeFor(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    h.cartResponse(store),
	})
}

// AddItemRequest is the payload for POST /cart/items
type AddItemRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	VariantID *uint `json:"variant_id"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	quote, err := h.catalog.PriceFor(c.Request.Context(), req.ProductID, req.VariantID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := quote.CheckStock(req.Quantity); err != nil {
		h.renderError(c, err)
		return
	}

	store, ok := h.storeFor(c)
	if !ok {
		return
	}
	if err := store.AddItem(c.Request.Context(), quote.ProductID, quote.VariantID, req.Quantity, quote.UnitPrice, quote.VendorID); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    h.cartResponse(store),
	})
}

// UpdateItemRequest is the payload for PUT /cart/items/:lineId
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// UpdateItem handles PUT /cart/items/:lineId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	store, ok := h.storeFor(c)
	if !ok {
		return
	}
	if err := store.UpdateQuantity(c.Request.Context(), c.Param("lineId"), req.Quantity); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    h.cartResponse(store),
	})
}

// RemoveItem handles DELETE /cart/items/:lineId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	store, ok := h.storeFor(c)
	if !ok {
		return
	}
	if err := store.RemoveItem(c.Request.Context(), c.Param("lineId")); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    h.cartResponse(store),
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	store, ok := h.storeFor(c)
	if !ok {
		return
	}
	if err := store.Clear(c.Request.Context()); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"data":    h.cartResponse(store),
	})
}

// SyncCart handles POST /cart/sync: retry the last sync for this session
// after a failed sign-in merge.
func (h *CartHandler) SyncCart(c *gin.Context) {
	sessionToken := middleware.SessionToken(c)
	if err := h.manager.Resync(c.Request.Context(), sessionToken); err != nil {
		h.renderError(c, err)
		return
	}

	store, ok := h.storeFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart synchronized successfully",
		"data":    h.cartResponse(store),
	})
}

// renderError maps domain sentinels to HTTP status codes
func (h *CartHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrVariantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrConflict), errors.Is(err, cart.ErrSyncConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart operation failed"})
	}
}
