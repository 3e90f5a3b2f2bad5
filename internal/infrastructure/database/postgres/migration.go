// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/coupon"
	"github.com/your-org/marketplace-backend/internal/domain/identity"
	"github.com/your-org/marketplace-backend/internal/domain/order"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Define all models that need migration in dependency order
	models := []interface{}{
		// Identity domain - Base tables
		&identity.User{},

		// Catalog domain
		&catalog.Vendor{},
		&catalog.Product{},
		&catalog.ProductVariant{},

		// Cart domain
		&cart.CartHead{},
		&cart.CartLine{},

		// Coupon domain
		&coupon.Coupon{},
		&coupon.Redemption{},

		// Order domain - Dependent tables
		&order.Order{},
		&order.OrderItem{},
	}

	// Run auto-migration for each model
	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",

		// Catalog indexes
		"CREATE INDEX IF NOT EXISTS idx_products_vendor_active ON products(vendor_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_product_variants_product_active ON product_variants(product_id, is_active)",

		// Cart indexes
		"CREATE INDEX IF NOT EXISTS idx_cart_lines_user_product ON cart_lines(user_id, product_id)",
		"CREATE INDEX IF NOT EXISTS idx_cart_lines_added_at ON cart_lines(user_id, added_at)",

		// Coupon indexes
		"CREATE INDEX IF NOT EXISTS idx_coupons_code_active ON coupons(code, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon ON coupon_redemptions(coupon_id)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_vendor ON order_items(vendor_id)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedTestUser(); err != nil {
		return err
	}
	if err := m.seedCatalog(); err != nil {
		return err
	}
	if err := m.seedCoupons(); err != nil {
		return err
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedTestUser() error {
	log.Println("👤 Seeding test user...")

	var existing identity.User
	result := m.db.Where("email = ?", "test@example.com").First(&existing)
	if result.Error != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("test1234"), 10)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		testUser := identity.User{
			Email:        "test@example.com",
			PasswordHash: string(hashedPassword),
			FirstName:    "Test",
			LastName:     "User",
			IsActive:     true,
		}
		if err := m.db.Create(&testUser).Error; err != nil {
			return fmt.Errorf("failed to create test user: %w", err)
		}
		log.Println("✅ Created test user: test@example.com (password: test1234)")
	} else {
		log.Printf("⏭️ Test user already exists with ID: %d", existing.ID)
	}

	return nil
}

func (m *Migration) seedCatalog() error {
	log.Println("🏷️ Seeding vendors and products...")

	vendors := []catalog.Vendor{
		{Name: "Acme Outfitters", Slug: "acme-outfitters", IsActive: true},
		{Name: "Blue Harbor Goods", Slug: "blue-harbor-goods", IsActive: true},
	}
	for i := range vendors {
		var existing catalog.Vendor
		result := m.db.Where("slug = ?", vendors[i].Slug).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&vendors[i]).Error; err != nil {
				return err
			}
			log.Printf("✅ Created vendor: %s", vendors[i].Name)
		} else {
			vendors[i] = existing
			log.Printf("⏭️ Vendor already exists: %s", existing.Name)
		}
	}

	products := []catalog.Product{
		{
			VendorID:      vendors[0].ID,
			SKU:           "ACME-TEE-001",
			Name:          "Classic Cotton Tee",
			Price:         decimal.RequireFromString("24.99"),
			IsActive:      true,
			TrackQuantity: true,
			Quantity:      200,
		},
		{
			VendorID:      vendors[0].ID,
			SKU:           "ACME-MUG-001",
			Name:          "Enamel Camp Mug",
			Price:         decimal.RequireFromString("14.50"),
			IsActive:      true,
			TrackQuantity: true,
			Quantity:      80,
		},
		{
			VendorID:      vendors[1].ID,
			SKU:           "BHG-CANDLE-001",
			Name:          "Sea Salt Candle",
			Price:         decimal.RequireFromString("32.00"),
			IsActive:      true,
			TrackQuantity: false,
		},
	}
	for _, p := range products {
		var existing catalog.Product
		result := m.db.Where("sku = ?", p.SKU).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&p).Error; err != nil {
				return err
			}
			log.Printf("✅ Created product: %s", p.Name)
		} else {
			log.Printf("⏭️ Product already exists: %s", existing.Name)
		}
	}

	return nil
}

func (m *Migration) seedCoupons() error {
	log.Println("🎟️ Seeding coupons...")

	maxDiscount := decimal.RequireFromString("50.00")
	minOrder := decimal.RequireFromString("25.00")
	coupons := []coupon.Coupon{
		{
			Code:              "WELCOME10",
			DiscountType:      coupon.DiscountTypePercentage,
			DiscountValue:     decimal.RequireFromString("10"),
			MaxDiscountAmount: &maxDiscount,
			StartsAt:          time.Now().Add(-24 * time.Hour),
			IsActive:          true,
		},
		{
			Code:          "FLAT5",
			DiscountType:  coupon.DiscountTypeFlat,
			DiscountValue: decimal.RequireFromString("5.00"),
			MinOrderValue: &minOrder,
			StartsAt:      time.Now().Add(-24 * time.Hour),
			IsActive:      true,
		},
	}

	for _, c := range coupons {
		var existing coupon.Coupon
		result := m.db.Where("code = ?", c.Code).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&c).Error; err != nil {
				return err
			}
			log.Printf("✅ Created coupon: %s", c.Code)
		} else {
			log.Printf("⏭️ Coupon already exists: %s", c.Code)
		}
	}

	return nil
}
