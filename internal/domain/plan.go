package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the period a recurring amount is quoted in.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

// Holding is one line of an account's breakdown. Informational only.
type Holding struct {
	Symbol string          `yaml:"symbol" json:"symbol"`
	Value  decimal.Decimal `yaml:"value" json:"value"`
}

// Account is an asset record: a balance that grows at its own annual rate.
type Account struct {
	ID         string           `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	Category   string           `yaml:"category,omitempty" json:"category,omitempty"`
	Balance    decimal.Decimal  `yaml:"balance" json:"balance"`
	GrowthRate *decimal.Decimal `yaml:"growth_rate,omitempty" json:"growth_rate,omitempty"`
	Holdings   []Holding        `yaml:"holdings,omitempty" json:"holdings,omitempty"`
}

// Contribution is a savings record. A nil AccountID means the amount is
// spread across all accounts in proportion to their balances.
type Contribution struct {
	ID        string          `yaml:"id" json:"id"`
	Amount    decimal.Decimal `yaml:"amount" json:"amount"`
	Frequency Frequency       `yaml:"frequency" json:"frequency"`
	AccountID *string         `yaml:"account_id,omitempty" json:"account_id,omitempty"`
	GoalID    *string         `yaml:"goal_id,omitempty" json:"goal_id,omitempty"`
}

// Expense is a spending record that inflates on its own schedule.
type Expense struct {
	ID         string           `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	Amount     decimal.Decimal  `yaml:"amount" json:"amount"`
	Frequency  Frequency        `yaml:"frequency" json:"frequency"`
	Category   string           `yaml:"category,omitempty" json:"category,omitempty"` // essential / discretionary
	GrowthRate *decimal.Decimal `yaml:"growth_rate,omitempty" json:"growth_rate,omitempty"`
}

// Income is an earnings record active between StartAge (inclusive) and EndAge (exclusive).
type Income struct {
	ID         string           `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	Amount     decimal.Decimal  `yaml:"amount" json:"amount"`
	Frequency  Frequency        `yaml:"frequency" json:"frequency"`
	GrowthRate *decimal.Decimal `yaml:"growth_rate,omitempty" json:"growth_rate,omitempty"`
	StartAge   *int             `yaml:"start_age,omitempty" json:"start_age,omitempty"`
	EndAge     *int             `yaml:"end_age,omitempty" json:"end_age,omitempty"`
}

// TimingKind names the anchor a goal's timing is expressed against.
type TimingKind string

const (
	TimingDate       TimingKind = "date"
	TimingRetirement TimingKind = "retirement"
	TimingAge        TimingKind = "age"
	TimingDeath      TimingKind = "death"
	TimingYear       TimingKind = "year"
)

// Timing is either a calendar anchor (date, year) or a symbolic one (retirement, age, death).
type Timing struct {
	Kind TimingKind `yaml:"kind" json:"kind"`
	Date *time.Time `yaml:"date,omitempty" json:"date,omitempty"`
	Age  *int       `yaml:"age,omitempty" json:"age,omitempty"`
	Year *int       `yaml:"year,omitempty" json:"year,omitempty"`
}

// Recurrence repeats a goal between Start and End.
type Recurrence struct {
	Frequency  Frequency `yaml:"frequency" json:"frequency"`
	EveryYears int       `yaml:"every_years,omitempty" json:"every_years,omitempty"`
	Start      *Timing   `yaml:"start,omitempty" json:"start,omitempty"`
	End        *Timing   `yaml:"end,omitempty" json:"end,omitempty"`
}

// GoalTypeRetirement marks the goal that carries the withdrawal order.
const GoalTypeRetirement = "retirement"

// Goal is a target amount withdrawn at a resolved age, once or on a recurrence.
type Goal struct {
	ID              string           `yaml:"id" json:"id"`
	Name            string           `yaml:"name" json:"name"`
	Type            string           `yaml:"type" json:"type"`
	TargetAmount    decimal.Decimal  `yaml:"target_amount" json:"target_amount"`
	Timing          Timing           `yaml:"timing" json:"timing"`
	Recurrence      *Recurrence      `yaml:"recurrence,omitempty" json:"recurrence,omitempty"`
	SourceAccountID *string          `yaml:"source_account_id,omitempty" json:"source_account_id,omitempty"`
	WithdrawalOrder []string         `yaml:"withdrawal_order,omitempty" json:"withdrawal_order,omitempty"`
	GrowthRate      *decimal.Decimal `yaml:"growth_rate,omitempty" json:"growth_rate,omitempty"`
}

// IsRetirement reports whether the goal is the retirement goal.
func (g Goal) IsRetirement() bool {
	return g.Type == GoalTypeRetirement
}

// DefaultDeathAge is the projection horizon when the profile omits one.
const DefaultDeathAge = 100

// MaxHorizon is the oldest age a projection may run to.
const MaxHorizon = 150

// Profile anchors symbolic timings to concrete ages.
type Profile struct {
	BirthDate     *time.Time `yaml:"birth_date,omitempty" json:"birth_date,omitempty"`
	CurrentAge    *int       `yaml:"current_age,omitempty" json:"current_age,omitempty"`
	RetirementAge int        `yaml:"retirement_age" json:"retirement_age"`
	DeathAge      int        `yaml:"death_age,omitempty" json:"death_age,omitempty"`
}

// Horizon returns the last simulated age.
func (p Profile) Horizon() int {
	if p.DeathAge <= 0 {
		return DefaultDeathAge
	}
	return p.DeathAge
}

// Withdrawal policy names.
const (
	PolicyOrdered      = "ordered"
	PolicyProportional = "proportional"
)

// Handling of accounts missing from an ordered withdrawal list.
const (
	UnlistedProportional = "proportional"
	UnlistedExcluded     = "excluded"
)

// WithdrawalSettings selects how retirement needs are drawn from accounts.
// Order falls back to the retirement goal's withdrawal order when empty.
type WithdrawalSettings struct {
	Policy   string   `yaml:"policy" json:"policy"`
	Order    []string `yaml:"order,omitempty" json:"order,omitempty"`
	Unlisted string   `yaml:"unlisted,omitempty" json:"unlisted,omitempty"`
}

// Plan is a user's full snapshot as supplied by the host application.
type Plan struct {
	Name          string             `yaml:"name" json:"name"`
	UserID        string             `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	AsOf          *time.Time         `yaml:"as_of,omitempty" json:"as_of,omitempty"`
	Profile       Profile            `yaml:"profile" json:"profile"`
	InflationRate *decimal.Decimal   `yaml:"inflation_rate,omitempty" json:"inflation_rate,omitempty"`
	Withdrawal    WithdrawalSettings `yaml:"withdrawal" json:"withdrawal"`
	Accounts      []Account          `yaml:"accounts" json:"accounts"`
	Contributions []Contribution     `yaml:"contributions,omitempty" json:"contributions,omitempty"`
	Expenses      []Expense          `yaml:"expenses,omitempty" json:"expenses,omitempty"`
	Incomes       []Income           `yaml:"incomes,omitempty" json:"incomes,omitempty"`
	Goals         []Goal             `yaml:"goals,omitempty" json:"goals,omitempty"`
	Scenarios     []ScenarioSpec     `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
}

// ScenarioSpec is a named variation of a Plan. Zero-valued fields leave the plan unchanged.
type ScenarioSpec struct {
	Name             string                     `yaml:"name" json:"name"`
	RetirementAge    *int                       `yaml:"retirement_age,omitempty" json:"retirement_age,omitempty"`
	DeathAge         *int                       `yaml:"death_age,omitempty" json:"death_age,omitempty"`
	InflationRate    *decimal.Decimal           `yaml:"inflation_rate,omitempty" json:"inflation_rate,omitempty"`
	Withdrawal       *WithdrawalSettings        `yaml:"withdrawal,omitempty" json:"withdrawal,omitempty"`
	GrowthOverrides  map[string]decimal.Decimal `yaml:"growth_overrides,omitempty" json:"growth_overrides,omitempty"`
	AddContributions []Contribution             `yaml:"add_contributions,omitempty" json:"add_contributions,omitempty"`
	AddExpenses      []Expense                  `yaml:"add_expenses,omitempty" json:"add_expenses,omitempty"`
	AddIncomes       []Income                   `yaml:"add_incomes,omitempty" json:"add_incomes,omitempty"`
	AddGoals         []Goal                     `yaml:"add_goals,omitempty" json:"add_goals,omitempty"`
	RemoveGoals      []string                   `yaml:"remove_goals,omitempty" json:"remove_goals,omitempty"`
}

// Apply returns a copy of the plan with the scenario's overrides applied.
// The receiver's slices are never modified.
func (s ScenarioSpec) Apply(p Plan) Plan {
	out := p
	out.Name = s.Name
	out.Scenarios = nil

	if s.RetirementAge != nil {
		out.Profile.RetirementAge = *s.RetirementAge
	}
	if s.DeathAge != nil {
		out.Profile.DeathAge = *s.DeathAge
	}
	if s.InflationRate != nil {
		r := *s.InflationRate
		out.InflationRate = &r
	}
	if s.Withdrawal != nil {
		out.Withdrawal = *s.Withdrawal
	}

	out.Accounts = make([]Account, len(p.Accounts))
	copy(out.Accounts, p.Accounts)
	for i := range out.Accounts {
		if rate, ok := s.GrowthOverrides[out.Accounts[i].ID]; ok {
			r := rate
			out.Accounts[i].GrowthRate = &r
		}
	}

	out.Contributions = append(append([]Contribution(nil), p.Contributions...), s.AddContributions...)
	out.Expenses = append(append([]Expense(nil), p.Expenses...), s.AddExpenses...)
	out.Incomes = append(append([]Income(nil), p.Incomes...), s.AddIncomes...)

	removed := make(map[string]bool, len(s.RemoveGoals))
	for _, id := range s.RemoveGoals {
		removed[id] = true
	}
	out.Goals = nil
	for _, g := range p.Goals {
		if !removed[g.ID] {
			out.Goals = append(out.Goals, g)
		}
	}
	out.Goals = append(out.Goals, s.AddGoals...)
	return out
}
