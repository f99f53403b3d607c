package output

import (
	"testing"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func scenario(name string, final int64, failureAge *int) domain.ProjectionResult {
	return domain.ProjectionResult{
		Name:       name,
		FailureAge: failureAge,
		Summary:    domain.Summary{FinalPortfolio: decimal.NewFromInt(final)},
	}
}

func TestAnalyzeScenarios_PrefersFundedThenLargestPortfolio(t *testing.T) {
	fails := 80
	comparison := &domain.ScenarioComparison{
		Scenarios: []domain.ProjectionResult{
			scenario("Baseline", 200000, nil),
			scenario("Aggressive", 900000, &fails),
			scenario("Delay", 300000, nil),
		},
	}

	rec := AnalyzeScenarios(comparison)
	assert.Equal(t, "Delay", rec.ScenarioName)
	assert.True(t, rec.Funded)
	assert.True(t, rec.PortfolioChange.Equal(decimal.NewFromInt(100000)), rec.PortfolioChange.String())
	assert.True(t, rec.PercentageChange.Equal(decimal.NewFromInt(50)), rec.PercentageChange.String())
}

func TestAnalyzeScenarios_ZeroBaselineAndEmpty(t *testing.T) {
	rec := AnalyzeScenarios(&domain.ScenarioComparison{
		Scenarios: []domain.ProjectionResult{scenario("Broke", 0, nil), scenario("Saver", 1000, nil)},
	})
	assert.Equal(t, "Saver", rec.ScenarioName)
	assert.True(t, rec.PercentageChange.IsZero())

	assert.Equal(t, Recommendation{}, AnalyzeScenarios(&domain.ScenarioComparison{}))
}

func TestGenerateAssumptions(t *testing.T) {
	assert.Equal(t, DefaultAssumptions, GenerateAssumptions(nil))

	rate := decimal.NewFromFloat(0.07)
	inflation := decimal.NewFromFloat(0.025)
	in := &calculation.ProjectionInput{
		InflationRate: &inflation,
		Withdrawal:    domain.WithdrawalSettings{Policy: "ordered", Order: []string{"brokerage", "roth"}},
		Accounts: []domain.Account{
			{ID: "roth", GrowthRate: &rate},
			{ID: "brokerage"},
		},
	}
	got := GenerateAssumptions(in)
	assert.Contains(t, got, "Expenses inflate at 2.5% annually unless a record sets its own rate")
	assert.Contains(t, got, "Withdrawal order: brokerage → roth")
	assert.Contains(t, got, "Account growth: brokerage 0.00%, roth 7.00%")
}
