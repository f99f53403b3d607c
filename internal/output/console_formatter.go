package output

import (
	"bytes"
	"fmt"

	"github.com/rpgo/finplan/internal/domain"
)

// ConsoleFormatter provides a concise console style summary via the formatter interface.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console-lite" }

func (c ConsoleFormatter) Format(results *domain.ScenarioComparison) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "PORTFOLIO PROJECTION SUMMARY")
	fmt.Fprintln(&buf, "================================")
	for _, sc := range results.Scenarios {
		s := sc.Summary
		fmt.Fprintf(&buf, "%s: Start=%s AtRetirement=%s Final=%s Depleted=%s\n",
			sc.Name,
			FormatCurrency(s.StartingPortfolio),
			FormatCurrency(s.PortfolioAtRetirement),
			FormatCurrency(s.FinalPortfolio),
			ageOrDash(s.DepletionAge),
		)
		status := "funded"
		if !sc.Succeeded() {
			status = "fails at age " + intToString(*sc.FailureAge)
		}
		fmt.Fprintf(&buf, "  Policy=%s Retire=%d Horizon=%d Status=%s\n", sc.Policy, sc.RetirementAge, sc.Horizon, status)
	}
	rec := AnalyzeScenarios(results)
	if rec.ScenarioName != "" && len(results.Scenarios) > 1 {
		fmt.Fprintln(&buf)
		fmt.Fprintf(&buf, "Recommended: %s (Δ %s / %s)\n", rec.ScenarioName, FormatCurrency(rec.PortfolioChange), FormatPercentage(rec.PercentageChange))
	}
	return buf.Bytes(), nil
}
