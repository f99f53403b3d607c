package output

import (
	"sort"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Recommendation encapsulates the selection result of the best scenario.
type Recommendation struct {
	ScenarioName     string
	Funded           bool
	FinalPortfolio   decimal.Decimal
	PortfolioChange  decimal.Decimal
	PercentageChange decimal.Decimal
}

// AnalyzeScenarios picks the best scenario: fully funded plans first, then
// the highest final portfolio. Changes are measured against the first scenario.
func AnalyzeScenarios(results *domain.ScenarioComparison) Recommendation {
	if len(results.Scenarios) == 0 {
		return Recommendation{}
	}
	baseline := results.Scenarios[0].Summary.FinalPortfolio

	ranked := make([]domain.ProjectionResult, len(results.Scenarios))
	copy(ranked, results.Scenarios)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Succeeded() != b.Succeeded() {
			return a.Succeeded()
		}
		return a.Summary.FinalPortfolio.GreaterThan(b.Summary.FinalPortfolio)
	})

	best := ranked[0]
	delta := best.Summary.FinalPortfolio.Sub(baseline)
	pct := decimal.Zero
	if !baseline.IsZero() {
		pct = delta.Div(baseline).Mul(decimalHundred)
	}
	return Recommendation{
		ScenarioName:     best.Name,
		Funded:           best.Succeeded(),
		FinalPortfolio:   best.Summary.FinalPortfolio,
		PortfolioChange:  delta,
		PercentageChange: pct,
	}
}
