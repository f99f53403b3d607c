package calculation

import (
	"github.com/shopspring/decimal"
)

// balancePlaces bounds the digits carried between annual steps. Decimal
// multiplication is exact, so without it a hundred-year run grows operands
// to thousands of digits.
const balancePlaces = 10

// factorPlaces is the precision kept while raising (1+r) to a power.
const factorPlaces = 20

// MonthlyRate converts an annual rate into a monthly one by simple division.
// This is not the compound-equivalent (1+annual)^(1/12)-1; it slightly
// overstates growth and is kept for parity with the planning app.
func MonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return annual.Div(twelve)
}

// CompoundFactor returns (1+rate)^periods for a non-negative integer number of periods.
func CompoundFactor(rate decimal.Decimal, periods int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	if periods <= 0 {
		return result
	}
	base := decimal.NewFromInt(1).Add(rate)
	for n := periods; n > 0; n >>= 1 {
		if n&1 == 1 {
			result = result.Mul(base).Round(factorPlaces)
		}
		base = base.Mul(base).Round(factorPlaces)
	}
	return result
}

// ProjectAccount grows a starting balance for the given number of months at
// annualRate, adding monthlyContribution at the end of every month:
//
//	B = S(1+r)^n + M((1+r)^n - 1)/r,  r = annualRate/12
//
// With r == 0 the formula degenerates to S + M*n, which is computed directly.
func ProjectAccount(start, annualRate, monthlyContribution decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return start
	}
	n := decimal.NewFromInt(int64(months))
	r := MonthlyRate(annualRate)
	if r.IsZero() {
		return start.Add(monthlyContribution.Mul(n)).Round(balancePlaces)
	}

	factor := CompoundFactor(r, months)
	balance := start.Mul(factor)
	if !monthlyContribution.IsZero() {
		balance = balance.Add(monthlyContribution.Mul(factor.Sub(decimal.NewFromInt(1))).Div(r))
	}
	return balance.Round(balancePlaces)
}

// GrowAnnual compounds an amount once per year, used for inflating expenses
// and incomes: amount * (1+rate)^years.
func GrowAnnual(amount, rate decimal.Decimal, years int) decimal.Decimal {
	if years <= 0 || rate.IsZero() {
		return amount
	}
	return amount.Mul(CompoundFactor(rate, years)).Round(balancePlaces)
}
