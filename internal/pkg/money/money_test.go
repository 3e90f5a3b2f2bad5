// internal/pkg/money/money_test.go
package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"whole dollars", "19.00", "USD", 1900},
		{"cents", "19.99", "USD", 1999},
		{"single cent", "0.01", "USD", 1},
		{"half cent rounds away from zero", "0.005", "USD", 1},
		{"cent boundary", "10.005", "USD", 1001},
		{"zero", "0", "USD", 0},
		{"zero-decimal yen passes through", "500", "JPY", 500},
		{"zero-decimal won passes through", "12345", "KRW", 12345},
		{"euro cents", "7.49", "EUR", 749},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnitsRejectsNegative(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("-1.00"), "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestToMinorUnitsUnknownCurrency(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("1.00"), "NOPE")
	assert.Error(t, err)
}

func TestFromMinorUnits(t *testing.T) {
	got, err := FromMinorUnits(1999, "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("19.99")))

	got, err = FromMinorUnits(500, "JPY")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(500)))

	_, err = FromMinorUnits(-1, "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	for _, code := range []string{"USD", "EUR", "JPY", "INR", "KRW"} {
		for _, x := range []int64{0, 1, 49, 50, 99, 100, 12345, 999999} {
			major, err := FromMinorUnits(x, code)
			require.NoError(t, err)

			back, err := ToMinorUnits(major, code)
			require.NoError(t, err)
			assert.Equalf(t, x, back, "round trip %d %s", x, code)
		}
	}
}

func TestCheckChargeable(t *testing.T) {
	assert.ErrorIs(t, CheckChargeable(30), ErrAmountOutOfRange)  // below 50-cent minimum
	assert.ErrorIs(t, CheckChargeable(0), ErrAmountOutOfRange)
	assert.ErrorIs(t, CheckChargeable(1000000), ErrAmountOutOfRange)
	assert.NoError(t, CheckChargeable(50))
	assert.NoError(t, CheckChargeable(999999))
	assert.NoError(t, CheckChargeable(1999))
}

func TestFormat(t *testing.T) {
	got := Format(decimal.RequireFromString("19.99"), "USD", "en-US")
	assert.Contains(t, got, "19.99")

	// Unknown currency falls back, never panics
	got = Format(decimal.RequireFromString("5.00"), "NOPE", "en-US")
	assert.Equal(t, "NOPE 5.00", got)

	// Unknown locale falls back to code + amount
	got = Format(decimal.RequireFromString("5.00"), "USD", "not a locale")
	assert.Equal(t, "USD 5.00", got)
}
