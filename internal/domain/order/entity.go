// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status represents the order status
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Order is the durable record written once a payment session is confirmed.
// PaymentSessionID carries a unique index so a replayed confirmation cannot
// create a second order for the same session.
type Order struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	OrderNumber      string  `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID           *uint   `gorm:"index" json:"user_id"` // Nullable for guest orders
	OwnerKey         string  `gorm:"not null;size:128;index" json:"-"`
	PaymentSessionID string  `gorm:"uniqueIndex;not null;size:255" json:"payment_session_id"`
	PaymentID        string  `gorm:"size:255" json:"payment_id"`
	Status           Status  `gorm:"not null;default:'confirmed'" json:"status"`

	SubtotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency       string          `gorm:"size:3;default:'USD'" json:"currency"`
	CouponCode     string          `gorm:"size:50" json:"coupon_code"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// OrderItem is a priced line captured from the cart at confirmation time.
type OrderItem struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OrderID          uint            `gorm:"not null;index" json:"order_id"`
	ProductID        uint            `gorm:"not null;index" json:"product_id"`
	ProductVariantID *uint           `gorm:"index" json:"product_variant_id"`
	VendorID         uint            `gorm:"not null;index" json:"vendor_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }

// GenerateOrderNumber builds the human-facing order number.
// Format: ORD-YYYYMMDD-XXXXX
func (o *Order) GenerateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%05d", time.Now().Format("20060102"), o.ID)
}
