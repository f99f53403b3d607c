package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/rpgo/finplan/internal/domain"
)

// ConsoleVerboseFormatter renders the detailed console report via the pluggable interface.
type ConsoleVerboseFormatter struct{}

func (c ConsoleVerboseFormatter) Name() string { return "console" }

func (c ConsoleVerboseFormatter) Format(results *domain.ScenarioComparison) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, strings.Repeat("=", 81))
	fmt.Fprintln(&buf, "DETAILED PORTFOLIO PROJECTION")
	fmt.Fprintln(&buf, strings.Repeat("=", 81))
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "KEY ASSUMPTIONS:")
	assumptions := results.Assumptions
	if len(assumptions) == 0 {
		assumptions = DefaultAssumptions
	}
	for _, a := range assumptions {
		fmt.Fprintf(&buf, "• %s\n", a)
	}
	fmt.Fprintln(&buf)

	for i, sc := range results.Scenarios {
		fmt.Fprintf(&buf, "SCENARIO %d: %s\n", i+1, sc.Name)
		fmt.Fprintln(&buf, strings.Repeat("=", 50))
		writeScenarioHeader(&buf, sc)
		writeYearTable(&buf, sc)
		writeGoalEvents(&buf, sc.GoalEvents)
		writeShortfalls(&buf, sc.Shortfalls)
		writeAnomalies(&buf, sc.Anomalies)
		fmt.Fprintln(&buf)
	}

	if len(results.Deltas) > 0 && len(results.Scenarios) == 2 {
		writeDeltas(&buf, results)
	}

	rec := AnalyzeScenarios(results)
	if rec.ScenarioName != "" && len(results.Scenarios) > 1 {
		fmt.Fprintln(&buf, "RECOMMENDATION")
		fmt.Fprintln(&buf, strings.Repeat("-", 14))
		fmt.Fprintf(&buf, "%s ends with %s (%s vs %s, %s)\n",
			rec.ScenarioName,
			FormatCurrency(rec.FinalPortfolio),
			FormatCurrency(rec.PortfolioChange),
			results.Scenarios[0].Name,
			FormatPercentage(rec.PercentageChange),
		)
	}
	return buf.Bytes(), nil
}

func writeScenarioHeader(w io.Writer, sc domain.ProjectionResult) {
	s := sc.Summary
	fmt.Fprintf(w, "As of:                   %s\n", sc.AsOf.Format("2006-01-02"))
	fmt.Fprintf(w, "Withdrawal policy:       %s\n", sc.Policy)
	fmt.Fprintf(w, "Ages:                    %d → %d (retire at %d)\n", sc.CurrentAge, sc.Horizon, sc.RetirementAge)
	fmt.Fprintf(w, "Starting portfolio:      %s\n", FormatCurrency(s.StartingPortfolio))
	fmt.Fprintf(w, "Portfolio at retirement: %s\n", FormatCurrency(s.PortfolioAtRetirement))
	fmt.Fprintf(w, "Peak portfolio:          %s (age %d)\n", FormatCurrency(s.PeakPortfolio), s.PeakAge)
	fmt.Fprintf(w, "Final portfolio:         %s\n", FormatCurrency(s.FinalPortfolio))
	fmt.Fprintf(w, "Total contributions:     %s\n", FormatCurrency(s.TotalContributions))
	fmt.Fprintf(w, "Total withdrawals:       %s\n", FormatCurrency(s.TotalWithdrawals))
	if !s.TotalGoalWithdrawals.IsZero() {
		fmt.Fprintf(w, "Goal withdrawals:        %s\n", FormatCurrency(s.TotalGoalWithdrawals))
	}
	if sc.Succeeded() {
		fmt.Fprintln(w, "Status:                  fully funded")
	} else {
		fmt.Fprintf(w, "Status:                  shortfall from age %d (%s unmet)\n", *sc.FailureAge, FormatCurrency(s.TotalShortfall))
	}
	if sc.RetirementGoalFunded != nil {
		fmt.Fprintf(w, "Retirement goal funded:  %s\n", boolToString(*sc.RetirementGoalFunded))
	}
	fmt.Fprintln(w)
}

func writeYearTable(w io.Writer, sc domain.ProjectionResult) {
	fmt.Fprintf(w, "%-5s %-6s %-13s %16s %14s %14s %14s %14s %14s\n",
		"Age", "Year", "Phase", "Portfolio", "Income", "Expenses", "Contrib", "Withdrawn", "Cash Flow")
	fmt.Fprintln(w, strings.Repeat("-", 118))
	for _, p := range sc.Points {
		marker := ""
		if p.HasShortfall() {
			marker = " !"
		}
		fmt.Fprintf(w, "%-5d %-6d %-13s %16s %14s %14s %14s %14s %14s%s\n",
			p.Age, p.Year, p.Phase,
			FormatCurrency(p.PortfolioValue),
			FormatCurrency(p.Income),
			FormatCurrency(p.Expenses),
			FormatCurrency(p.Contributions),
			FormatCurrency(p.Withdrawals),
			FormatCurrency(p.CashFlow),
			marker,
		)
	}
	fmt.Fprintln(w)
}

func writeGoalEvents(w io.Writer, events []domain.GoalEvent) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w, "GOALS:")
	for _, e := range events {
		line := fmt.Sprintf("  age %d (%d) %s: %s withdrawn of %s", e.Age, e.Year, e.GoalName, FormatCurrency(e.Withdrawn), FormatCurrency(e.Amount))
		if e.Unmet.IsPositive() {
			line += fmt.Sprintf(", %s unmet", FormatCurrency(e.Unmet))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

func writeShortfalls(w io.Writer, shortfalls []domain.Shortfall) {
	if len(shortfalls) == 0 {
		return
	}
	fmt.Fprintln(w, "SHORTFALLS:")
	for _, s := range shortfalls {
		fmt.Fprintf(w, "  age %d (%d): needed %s, funded %s, unmet %s\n", s.Age, s.Year, FormatCurrency(s.Need), FormatCurrency(s.Funded), FormatCurrency(s.Unmet))
	}
	fmt.Fprintln(w)
}

func writeAnomalies(w io.Writer, anomalies []domain.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	fmt.Fprintln(w, "DATA NOTES:")
	for _, a := range anomalies {
		if a.RecordID != "" {
			fmt.Fprintf(w, "  [%s] %s: %s\n", a.Kind, a.RecordID, a.Message)
			continue
		}
		fmt.Fprintf(w, "  [%s] %s\n", a.Kind, a.Message)
	}
	fmt.Fprintln(w)
}

func writeDeltas(w io.Writer, results *domain.ScenarioComparison) {
	fmt.Fprintf(w, "DIFFERENCE: %s minus %s\n", results.Scenarios[1].Name, results.Scenarios[0].Name)
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "%-5s %-6s %18s %18s %18s\n", "Age", "Year", "Portfolio", "Expenses", "Cash Flow")
	for _, d := range results.Deltas {
		fmt.Fprintf(w, "%-5d %-6d %18s %18s %18s\n", d.Age, d.Year,
			FormatCurrency(d.PortfolioValue), FormatCurrency(d.Expenses), FormatCurrency(d.CashFlow))
	}
	fmt.Fprintln(w)
}
