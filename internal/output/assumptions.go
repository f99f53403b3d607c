package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/shopspring/decimal"
)

// DefaultAssumptions lists key modeling assumptions rendered in detailed outputs.
var DefaultAssumptions = []string{
	"Monthly growth rate is the annual rate divided by 12, compounded monthly",
	"Contributions are deposited at the end of each month",
	"Expenses inflate at 3.0% annually unless a record sets its own rate",
	"Incomes stay flat unless a record sets its own growth rate",
	"Retirement needs are withdrawn once per year after growth",
}

// GenerateAssumptions creates the assumptions list from an actual projection input.
func GenerateAssumptions(in *calculation.ProjectionInput) []string {
	if in == nil {
		return DefaultAssumptions
	}
	inflation := calculation.DefaultInflationRate
	if in.InflationRate != nil {
		inflation = *in.InflationRate
	}

	out := []string{
		DefaultAssumptions[0],
		DefaultAssumptions[1],
		fmt.Sprintf("Expenses inflate at %.1f%% annually unless a record sets its own rate", inflation.Mul(decimalHundred).InexactFloat64()),
		DefaultAssumptions[3],
		DefaultAssumptions[4],
	}

	switch {
	case in.Withdrawal.Policy == "ordered" && len(in.Withdrawal.Order) > 0:
		out = append(out, "Withdrawal order: "+strings.Join(in.Withdrawal.Order, " → "))
	case in.Withdrawal.Policy != "":
		out = append(out, "Withdrawal policy: "+in.Withdrawal.Policy)
	}

	rates := make([]string, 0, len(in.Accounts))
	for _, a := range in.Accounts {
		r := decimal.Zero
		if a.GrowthRate != nil {
			r = *a.GrowthRate
		}
		rates = append(rates, fmt.Sprintf("%s %s", a.ID, FormatRate(r)))
	}
	sort.Strings(rates)
	if len(rates) > 0 {
		out = append(out, "Account growth: "+strings.Join(rates, ", "))
	}
	return out
}

var decimalHundred = decimal.NewFromInt(100)
