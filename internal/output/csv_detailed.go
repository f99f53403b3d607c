package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/rpgo/finplan/internal/domain"
)

// CSVDetailedExporter writes one row per scenario and year. With Account set,
// only that account's balance and withdrawals are exported.
type CSVDetailedExporter struct {
	Account string
}

func (c CSVDetailedExporter) Name() string { return "detailed-csv" }

func (c CSVDetailedExporter) Format(results *domain.ScenarioComparison) ([]byte, error) {
	accounts, err := c.columns(results)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Scenario", "Age", "Year", "Phase", "Portfolio", "NetWorth", "Income", "Expenses", "Contributions", "Withdrawals", "GoalWithdrawals", "CashFlow", "Shortfall"}
	for _, id := range accounts {
		header = append(header, "Balance:"+id, "Withdrawn:"+id)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, sc := range results.Scenarios {
		for _, p := range sc.Points {
			row := []string{
				sc.Name,
				intToString(p.Age),
				intToString(p.Year),
				string(p.Phase),
				p.PortfolioValue.StringFixed(2),
				p.NetWorth.StringFixed(2),
				p.Income.StringFixed(2),
				p.Expenses.StringFixed(2),
				p.Contributions.StringFixed(2),
				p.Withdrawals.StringFixed(2),
				p.GoalWithdrawals.StringFixed(2),
				p.CashFlow.StringFixed(2),
				p.Shortfall.StringFixed(2),
			}
			for _, id := range accounts {
				row = append(row, p.Balance(id).StringFixed(2), p.Withdrawn[id].StringFixed(2))
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// columns returns the account ids to export, in a stable order.
func (c CSVDetailedExporter) columns(results *domain.ScenarioComparison) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, sc := range results.Scenarios {
		for _, id := range sc.AccountIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if c.Account == "" {
		sort.Strings(ids)
		return ids, nil
	}
	if !seen[c.Account] {
		return nil, fmt.Errorf("unknown account %q", c.Account)
	}
	return []string{c.Account}, nil
}
