// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
)

// Handlers bundles the wired handler set for route registration
type Handlers struct {
	Auth     *handlers.AuthHandler
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Order    *handlers.OrderHandler
	Payment  *handlers.PaymentHandler
}

// SetupRoutes registers all API v1 routes
func SetupRoutes(rg *gin.RouterGroup, h Handlers, cfg *config.Config) {
	// Auth endpoints
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", middleware.OptionalAuthMiddleware(cfg), h.Auth.Login)
		auth.POST("/session", middleware.OptionalAuthMiddleware(cfg), h.Auth.Announce)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/logout", h.Auth.Logout)
		}
	}

	// Cart routes work for guest sessions and authenticated users alike
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("/items", h.Cart.AddItem)
		cart.PUT("/items/:lineId", h.Cart.UpdateItem)
		cart.DELETE("/items/:lineId", h.Cart.RemoveItem)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/sync", h.Cart.SyncCart)
	}

	// Checkout routes
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		checkout.POST("", h.Checkout.Begin)
		checkout.POST("/coupon/preview", h.Checkout.PreviewCoupon)
	}

	// Order routes require authentication
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:number", h.Order.GetOrder)
	}

	// Vendor settlement view
	vendors := rg.Group("/vendors")
	vendors.Use(middleware.AuthMiddleware(cfg))
	{
		vendors.GET("/payouts", h.Order.VendorPayouts)
	}

	// Processor callbacks authenticate by signature, not by session
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/payment", h.Payment.Webhook)
	}
}
