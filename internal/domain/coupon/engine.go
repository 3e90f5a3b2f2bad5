// internal/domain/coupon/engine.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Validation rejection reasons. These are expected outcomes, returned as
// values inside Validation rather than surfaced as call errors.
var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInactive    = errors.New("coupon is not active")
	ErrCouponExpired     = errors.New("coupon is outside its validity window")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrOrderBelowMinimum = errors.New("order subtotal below coupon minimum")
)

// Finder looks up coupon records by normalized code
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// Validation is the outcome of evaluating a coupon against a subtotal
type Validation struct {
	Valid    bool            `json:"is_valid"`
	Discount decimal.Decimal `json:"discount_amount"`
	Coupon   *Coupon         `json:"coupon,omitempty"`
	Err      error           `json:"-"`
	Message  string          `json:"message,omitempty"`
}

// Engine evaluates coupons against order subtotals. It never mutates usage
// counts; incrementing happens at order finalization so retried checkouts
// cannot double-count.
type Engine struct {
	finder Finder
}

// NewEngine creates a new discount engine
func NewEngine(finder Finder) *Engine {
	return &Engine{finder: finder}
}

// Validate evaluates code against subtotal at the given instant. The returned
// error is reserved for unexpected failures (store unreachable); every
// business rejection is reported through the Validation value.
func (e *Engine) Validate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (Validation, error) {
	c, err := e.finder.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return rejection(ErrCouponNotFound, "Invalid coupon code"), nil
		}
		return Validation{}, fmt.Errorf("coupon lookup failed: %w", err)
	}

	if !c.IsActive {
		return rejection(ErrCouponInactive, "This coupon is no longer active"), nil
	}

	if now.Before(c.StartsAt) {
		return rejection(ErrCouponExpired, "This coupon is not valid yet"), nil
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return rejection(ErrCouponExpired, "This coupon has expired"), nil
	}

	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return rejection(ErrCouponExhausted, "This coupon has reached its usage limit"), nil
	}

	if c.MinOrderValue != nil && subtotal.LessThan(*c.MinOrderValue) {
		return rejection(ErrOrderBelowMinimum,
			fmt.Sprintf("Minimum order value of %s required", c.MinOrderValue.StringFixed(2))), nil
	}

	discount := e.computeDiscount(c, subtotal)

	return Validation{
		Valid:    true,
		Discount: discount,
		Coupon:   c,
		Message:  fmt.Sprintf("Coupon applied, you saved %s", discount.StringFixed(2)),
	}, nil
}

func (e *Engine) computeDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	if c.DiscountType == DiscountTypePercentage {
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	} else {
		discount = c.DiscountValue
	}

	// Cap applies to flat coupons too, in case a record carries one.
	if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
		discount = *c.MaxDiscountAmount
	}

	// Net payable floors at zero.
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return discount
}

func rejection(err error, message string) Validation {
	return Validation{
		Valid:    false,
		Discount: decimal.Zero,
		Err:      err,
		Message:  message,
	}
}
