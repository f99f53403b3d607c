package calculation

import (
	"testing"
	"time"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testAsOf = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

// assertDecimalNear checks |want-got| < tol.
func assertDecimalNear(t *testing.T, want, got decimal.Decimal, tol string, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, got.Sub(want).Abs().LessThan(dec(tol)), "expected %s, got %s %v", want, got, msgAndArgs)
}

// assertDecimalEqual checks exact numeric equality, ignoring exponent differences.
func assertDecimalEqual(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "expected %s, got %s %v", want, got, msgAndArgs)
}

func account(id, balance string, rate string) domain.Account {
	a := domain.Account{ID: id, Name: id, Balance: dec(balance)}
	if rate != "" {
		a.GrowthRate = decPtr(rate)
	}
	return a
}

func flatExpense(id, annual string) domain.Expense {
	return domain.Expense{ID: id, Name: id, Amount: dec(annual), Frequency: domain.FrequencyAnnual, GrowthRate: decPtr("0")}
}

func retiredInput(accounts []domain.Account, expenses []domain.Expense, settings domain.WithdrawalSettings) *ProjectionInput {
	return &ProjectionInput{
		Name:       "retired",
		AsOf:       testAsOf,
		Profile:    domain.Profile{CurrentAge: intPtr(65), RetirementAge: 65, DeathAge: 67},
		Withdrawal: settings,
		Accounts:   accounts,
		Expenses:   expenses,
	}
}
