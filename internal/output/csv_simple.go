package output

import (
	"bytes"
	"encoding/csv"

	"github.com/rpgo/finplan/internal/domain"
)

// CSVSummarizer implements the simple summary CSV output (one row per scenario).
type CSVSummarizer struct{}

func (c CSVSummarizer) Name() string { return "csv" }

func (c CSVSummarizer) Format(results *domain.ScenarioComparison) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Scenario", "Policy", "CurrentAge", "RetirementAge", "Horizon", "StartingPortfolio", "PortfolioAtRetirement", "PeakPortfolio", "PeakAge", "FinalPortfolio", "TotalContributions", "TotalWithdrawals", "TotalGoalWithdrawals", "TotalShortfall", "FailureAge", "DepletionAge", "Anomalies"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, sc := range results.Scenarios {
		s := sc.Summary
		row := []string{
			sc.Name,
			sc.Policy,
			intToString(sc.CurrentAge),
			intToString(sc.RetirementAge),
			intToString(sc.Horizon),
			s.StartingPortfolio.StringFixed(2),
			s.PortfolioAtRetirement.StringFixed(2),
			s.PeakPortfolio.StringFixed(2),
			intToString(s.PeakAge),
			s.FinalPortfolio.StringFixed(2),
			s.TotalContributions.StringFixed(2),
			s.TotalWithdrawals.StringFixed(2),
			s.TotalGoalWithdrawals.StringFixed(2),
			s.TotalShortfall.StringFixed(2),
			optionalAge(sc.FailureAge),
			optionalAge(s.DepletionAge),
			intToString(len(sc.Anomalies)),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func optionalAge(age *int) string {
	if age == nil {
		return ""
	}
	return intToString(*age)
}
