// internal/pkg/money/money.go
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Processor charge bounds, expressed in minor units.
const (
	MinChargeMinorUnits int64 = 50
	MaxChargeMinorUnits int64 = 999999
)

var (
	// ErrInvalidAmount is returned for negative or non-numeric amounts
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountOutOfRange is returned when an amount violates processor charge bounds
	ErrAmountOutOfRange = errors.New("amount out of processor range")
)

// ToMinorUnits converts a major-unit decimal amount to the integer minor-unit
// value the payment processor expects. Zero-decimal currencies carry no
// fractional unit, so the amount passes through as an integer major-unit value.
func ToMinorUnits(amount decimal.Decimal, currencyCode string) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidAmount
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return 0, fmt.Errorf("unknown currency %q: %w", currencyCode, err)
	}

	if isZeroDecimal(unit) {
		return amount.Round(0).IntPart(), nil
	}

	// Round half away from zero on the scaled value so 0.005 becomes 1 cent
	// rather than drifting below the boundary through float arithmetic.
	return amount.Shift(2).Round(0).IntPart(), nil
}

// FromMinorUnits converts a processor minor-unit integer back to a major-unit
// decimal amount.
func FromMinorUnits(minor int64, currencyCode string) (decimal.Decimal, error) {
	if minor < 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unknown currency %q: %w", currencyCode, err)
	}

	if isZeroDecimal(unit) {
		return decimal.NewFromInt(minor), nil
	}

	return decimal.NewFromInt(minor).Shift(-2), nil
}

// CheckChargeable verifies a minor-unit amount against the processor's charge
// bounds. Violations are reported, never clamped.
func CheckChargeable(minor int64) error {
	if minor < MinChargeMinorUnits || minor > MaxChargeMinorUnits {
		return ErrAmountOutOfRange
	}
	return nil
}

// Format renders an amount as a locale-aware display string. It is pure and
// never fails on valid numeric input; unknown locales or currencies fall back
// to "CODE amount".
func Format(amount decimal.Decimal, currencyCode, locale string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return fmt.Sprintf("%s %s", currencyCode, amount.StringFixed(2))
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Sprintf("%s %s", unit.String(), amount.StringFixed(2))
	}

	value, _ := amount.Float64()
	return message.NewPrinter(tag).Sprintf("%v", currency.Symbol(unit.Amount(value)))
}

// isZeroDecimal reports whether the currency's standard rounding produces no
// fractional part (JPY, KRW, VND and friends).
func isZeroDecimal(unit currency.Unit) bool {
	scale, _ := currency.Standard.Rounding(unit)
	return scale == 0
}
