// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/coupon"
	"github.com/your-org/marketplace-backend/internal/domain/identity"
	"github.com/your-org/marketplace-backend/internal/domain/order"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/interfaces/http"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/routes"
	"github.com/your-org/marketplace-backend/internal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.New(cfg)

	log.Printf("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Health check
	if err := db.Health(); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}

	if err := redisClient.Health(); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	if err := migration.CreateIndexes(); err != nil {
		log.Printf("Warning: Index creation failed: %v", err)
	}

	// Seed initial data in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.Printf("Warning: Data seeding failed: %v", err)
		}
	}

	// Auth transitions flow from the identity service to the cart manager
	bus := identity.NewBus()
	defer bus.Close()

	userRepo := cart.NewGormRepository(db.GetDB())
	guestRepo := cart.NewRedisRepository(redisClient.GetClient(), cfg.Cart.GuestCartTTL)
	manager := cart.NewManager(userRepo, guestRepo, cart.SyncPolicy{
		ClearOnSignOut: cfg.Cart.ClearOnSignOut,
		MaxRetries:     cfg.Cart.SyncMaxRetries,
		GuestIdleTTL:   cfg.Cart.GuestCartTTL,
	}, appLog)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go manager.Run(ctx, bus.Subscribe(16))

	// Domain services
	identityService := identity.NewService(db.GetDB(), cfg, bus, appLog)
	catalogService := catalog.NewService(db.GetDB())
	couponStore := coupon.NewStore(db.GetDB())
	couponEngine := coupon.NewEngine(couponStore)
	orderService := order.NewService(db.GetDB(), cfg, appLog)
	paymentClient := payment.NewHTTPClient(cfg, appLog)

	orchestrator := checkout.NewOrchestrator(
		couponEngine,
		couponStore,
		paymentClient,
		orderService,
		redisClient.GetClient(),
		cfg,
		appLog,
	)

	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(identityService, cfg),
		Cart:     handlers.NewCartHandler(manager, catalogService, cfg),
		Checkout: handlers.NewCheckoutHandler(orchestrator, manager, couponEngine, cfg),
		Order:    handlers.NewOrderHandler(orderService, cfg),
		Payment:  handlers.NewPaymentHandler(orchestrator, cfg),
	}

	log.Println("✅ All systems operational!")

	// Create and start HTTP server
	server := http.NewServer(cfg, db.GetDB(), redisClient.GetClient(), h)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("👋 Shutting down gracefully...")

	// Give server 30 seconds to shutdown gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("✅ Server shutdown completed")
}
