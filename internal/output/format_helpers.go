package output

import (
	"strconv"

	fpdecimal "github.com/rpgo/finplan/pkg/decimal"
	"github.com/shopspring/decimal"
)

// FormatCurrency formats a decimal as USD currency with thousands separators.
// Kept here so it can be reused by multiple formatters and unit tested in isolation.
func FormatCurrency(amount decimal.Decimal) string {
	return fpdecimal.NewMoneyFromDecimal(amount).Format()
}

// FormatPercentage formats a decimal as a percentage with 2 decimals.
func FormatPercentage(amount decimal.Decimal) string { return amount.StringFixed(2) + "%" }

// FormatRate renders a fractional rate (0.07) as a percentage ("7.00%").
func FormatRate(rate decimal.Decimal) string { return FormatPercentage(rate.Mul(decimalHundred)) }

func intToString(i int) string { return strconv.Itoa(i) }

func boolToString(b bool) string { return strconv.FormatBool(b) }

// ageOrDash renders an optional age.
func ageOrDash(age *int) string {
	if age == nil {
		return "-"
	}
	return strconv.Itoa(*age)
}
