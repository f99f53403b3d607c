package calculation

import (
	"strings"

	"github.com/rpgo/finplan/internal/domain"
	fpdecimal "github.com/rpgo/finplan/pkg/decimal"
	"github.com/shopspring/decimal"
)

// WeeksPerMonth approximates 52/12. The truncated value is kept so totals
// match the figures users already see in the planning app.
var WeeksPerMonth = decimal.RequireFromString("4.33")

var (
	twelve = decimal.NewFromInt(12)
	three  = decimal.NewFromInt(3)
	four   = decimal.NewFromInt(4)
)

// FrequencyAmount is anything quoted as an amount per period.
type FrequencyAmount struct {
	Amount    decimal.Decimal
	Frequency domain.Frequency
}

// NormalizeFrequency maps loose spellings onto the canonical frequencies.
// The second return value is false when the frequency is not recognized.
func NormalizeFrequency(f domain.Frequency) (domain.Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(string(f))) {
	case "weekly", "week":
		return domain.FrequencyWeekly, true
	case "monthly", "month":
		return domain.FrequencyMonthly, true
	case "quarterly", "quarter":
		return domain.FrequencyQuarterly, true
	case "annual", "annually", "yearly", "year":
		return domain.FrequencyAnnual, true
	default:
		return domain.FrequencyMonthly, false
	}
}

// MonthlyEquivalent converts an amount quoted at freq into a monthly amount.
// Unknown frequencies are treated as monthly and reported through ok=false.
func MonthlyEquivalent(amount decimal.Decimal, freq domain.Frequency) (monthly decimal.Decimal, ok bool) {
	f, ok := NormalizeFrequency(freq)
	switch f {
	case domain.FrequencyWeekly:
		return amount.Mul(WeeksPerMonth), ok
	case domain.FrequencyQuarterly:
		return amount.Div(three), ok
	case domain.FrequencyAnnual:
		return amount.Div(twelve), ok
	default:
		return amount, ok
	}
}

// AnnualEquivalent converts an amount quoted at freq into an annual amount.
func AnnualEquivalent(amount decimal.Decimal, freq domain.Frequency) (annual decimal.Decimal, ok bool) {
	f, ok := NormalizeFrequency(freq)
	switch f {
	case domain.FrequencyWeekly:
		return amount.Mul(WeeksPerMonth).Mul(twelve), ok
	case domain.FrequencyQuarterly:
		return amount.Mul(four), ok
	case domain.FrequencyAnnual:
		return amount, ok
	default:
		return amount.Mul(twelve), ok
	}
}

// NormalizeMonthly sums records on a monthly basis. It never fails:
// unknown frequencies count as monthly.
func NormalizeMonthly(records []FrequencyAmount) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		m, _ := MonthlyEquivalent(r.Amount, r.Frequency)
		total = total.Add(m)
	}
	return total
}

// SafeAmount converts a float coming from an untyped source (JSON, database
// column) into a decimal, mapping NaN and infinities to zero.
func SafeAmount(v float64) decimal.Decimal {
	return fpdecimal.SafeFromFloat(v)
}
