package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the state an annual step runs in. The switch from accumulating
// to decumulating happens once, at the retirement age.
type Phase string

const (
	PhaseAccumulating Phase = "accumulating"
	PhaseDecumulating Phase = "decumulating"
)

// ProjectionPoint is the state at the end of one simulated year.
type ProjectionPoint struct {
	Age   int   `json:"age"`
	Year  int   `json:"year"`
	Phase Phase `json:"phase"`

	Balances       map[string]decimal.Decimal `json:"balances"`
	PortfolioValue decimal.Decimal            `json:"portfolio_value"`
	NetWorth       decimal.Decimal            `json:"net_worth"`

	// Flows over the year that ended at this point
	Income          decimal.Decimal            `json:"income"`
	Expenses        decimal.Decimal            `json:"expenses"`
	Contributions   decimal.Decimal            `json:"contributions"`
	Withdrawals     decimal.Decimal            `json:"withdrawals"`
	Withdrawn       map[string]decimal.Decimal `json:"withdrawn,omitempty"`
	GoalWithdrawals decimal.Decimal            `json:"goal_withdrawals"`
	CashFlow        decimal.Decimal            `json:"cash_flow"`
	Shortfall       decimal.Decimal            `json:"shortfall"`
}

// Balance returns one account's balance, zero when the account is unknown.
func (p ProjectionPoint) Balance(accountID string) decimal.Decimal {
	return p.Balances[accountID]
}

// HasShortfall reports whether the year's need went partly unfunded.
func (p ProjectionPoint) HasShortfall() bool {
	return p.Shortfall.GreaterThan(decimal.Zero)
}

// Shortfall records a year in which accounts could not cover the retirement need.
type Shortfall struct {
	Age    int             `json:"age"`
	Year   int             `json:"year"`
	Need   decimal.Decimal `json:"need"`
	Funded decimal.Decimal `json:"funded"`
	Unmet  decimal.Decimal `json:"unmet"`
}

// GoalEvent records one goal occurrence and how much of it was funded.
type GoalEvent struct {
	GoalID    string                     `json:"goal_id"`
	GoalName  string                     `json:"goal_name"`
	Age       int                        `json:"age"`
	Year      int                        `json:"year"`
	Amount    decimal.Decimal            `json:"amount"`
	Withdrawn decimal.Decimal            `json:"withdrawn"`
	Unmet     decimal.Decimal            `json:"unmet"`
	Sources   map[string]decimal.Decimal `json:"sources,omitempty"`
}

// Anomaly kinds reported instead of failing a run.
const (
	AnomalyInvalidAmount      = "invalid_amount"
	AnomalyNegativeBalance    = "negative_balance"
	AnomalyUnknownFrequency   = "unknown_frequency"
	AnomalyUnknownAccount     = "unknown_account"
	AnomalyUnresolvableTiming = "unresolvable_timing"
	AnomalyGoalOutOfRange     = "goal_out_of_range"
	AnomalyUnlistedAccount    = "unlisted_account"
	AnomalyEmptyOrder         = "empty_withdrawal_order"
)

// Anomaly is a data-quality problem that was coerced rather than propagated.
type Anomaly struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

// Summary holds headline figures derived from a result's points.
type Summary struct {
	StartingPortfolio     decimal.Decimal `json:"starting_portfolio"`
	PortfolioAtRetirement decimal.Decimal `json:"portfolio_at_retirement"`
	FinalPortfolio        decimal.Decimal `json:"final_portfolio"`
	PeakPortfolio         decimal.Decimal `json:"peak_portfolio"`
	PeakAge               int             `json:"peak_age"`
	DepletionAge          *int            `json:"depletion_age,omitempty"`
	TotalContributions    decimal.Decimal `json:"total_contributions"`
	TotalWithdrawals      decimal.Decimal `json:"total_withdrawals"`
	TotalGoalWithdrawals  decimal.Decimal `json:"total_goal_withdrawals"`
	TotalShortfall        decimal.Decimal `json:"total_shortfall"`
	YearsFunded           int             `json:"years_funded"`
}

// ProjectionResult is the output of a single projection run.
type ProjectionResult struct {
	ID                   string            `json:"id,omitempty"`
	Name                 string            `json:"name"`
	Fingerprint          string            `json:"fingerprint"`
	AsOf                 time.Time         `json:"as_of"`
	Policy               string            `json:"policy"`
	CurrentAge           int               `json:"current_age"`
	RetirementAge        int               `json:"retirement_age"`
	Horizon              int               `json:"horizon"`
	AccountIDs           []string          `json:"account_ids"`
	Points               []ProjectionPoint `json:"points"`
	FailureAge           *int              `json:"failure_age,omitempty"`
	Shortfalls           []Shortfall       `json:"shortfalls,omitempty"`
	GoalEvents           []GoalEvent       `json:"goal_events,omitempty"`
	Anomalies            []Anomaly         `json:"anomalies,omitempty"`
	RetirementGoalFunded *bool             `json:"retirement_goal_funded,omitempty"`
	Summary              Summary           `json:"summary"`
}

// PointAt returns the point for the given age.
func (r *ProjectionResult) PointAt(age int) (ProjectionPoint, bool) {
	for _, p := range r.Points {
		if p.Age == age {
			return p, true
		}
	}
	return ProjectionPoint{}, false
}

// Succeeded reports whether every retirement need was funded.
func (r *ProjectionResult) Succeeded() bool {
	return r.FailureAge == nil
}

// PointDelta is proposed minus current at one age.
type PointDelta struct {
	Age            int             `json:"age"`
	Year           int             `json:"year"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Expenses       decimal.Decimal `json:"expenses"`
	CashFlow       decimal.Decimal `json:"cash_flow"`
}

// ScenarioComparison contains the results of running one or more scenarios.
// Deltas are only populated when exactly two scenarios were compared.
type ScenarioComparison struct {
	Scenarios   []ProjectionResult `json:"scenarios"`
	Deltas      []PointDelta       `json:"deltas,omitempty"`
	Assumptions []string           `json:"assumptions,omitempty"`
}
