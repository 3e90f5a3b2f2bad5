// internal/domain/coupon/entity.go
package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates how a coupon's value is applied
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFlat       DiscountType = "flat"
)

// Coupon represents a discount code record
type Coupon struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Code              string           `gorm:"uniqueIndex;not null" json:"code"`
	DiscountType      DiscountType     `gorm:"not null" json:"discount_type"`
	DiscountValue     decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MinOrderValue     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"min_order_value,omitempty"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:numeric(12,2)" json:"max_discount_amount,omitempty"`
	StartsAt          time.Time        `gorm:"not null" json:"starts_at"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
	MaxUses           *int             `json:"max_uses,omitempty"`
	UsedCount         int              `gorm:"not null;default:0" json:"used_count"`
	IsActive          bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName overrides the table name
func (Coupon) TableName() string {
	return "coupons"
}

// Redemption records a coupon use keyed by checkout session, so repeated
// processor callbacks count a use exactly once.
type Redemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CouponID  uint      `gorm:"not null;index" json:"coupon_id"`
	SessionID string    `gorm:"uniqueIndex;not null" json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Redemption) TableName() string {
	return "coupon_redemptions"
}

// NormalizeCode maps user input onto the stored code form: trimmed, upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
