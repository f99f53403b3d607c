package decimal

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary amount with proper financial precision
type Money struct {
	decimal.Decimal
}

// NewMoney creates a new Money instance from a float64.
// NaN and infinities become zero; shopspring/decimal panics on them.
func NewMoney(value float64) Money {
	return Money{SafeFromFloat(value)}
}

// NewMoneyFromDecimal creates a new Money instance from a decimal.Decimal
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d}
}

// SafeFromFloat converts a float64 into a decimal, mapping NaN and ±Inf to zero.
func SafeFromFloat(value float64) decimal.Decimal {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(value)
}

// SafeFromFloatPtr is SafeFromFloat for nullable columns; nil yields the fallback.
func SafeFromFloatPtr(value *float64, fallback decimal.Decimal) decimal.Decimal {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return fallback
	}
	return decimal.NewFromFloat(*value)
}

// String returns the string representation with two decimals
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// Format renders the amount as "$1,234.50" (negative amounts as "-$1,234.50").
func (m Money) Format() string {
	s := m.Decimal.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if m.Decimal.Round(2).IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}
