package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InputParser handles parsing of plan files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a plan from a YAML or JSON file
func (ip *InputParser) LoadFromFile(filename string) (*domain.Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.Parse(data)
}

// Parse decodes and validates a plan document.
func (ip *InputParser) Parse(data []byte) (*domain.Plan, error) {
	var plan domain.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidateConfiguration(&plan); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &plan, nil
}

// WriteToFile writes the plan as YAML.
func (ip *InputParser) WriteToFile(plan *domain.Plan, filename string) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filename, err)
	}
	return nil
}

// ValidateConfiguration rejects plans the engine cannot run. Record-level
// data problems (negative amounts, unknown frequencies, dangling account
// references) are left to the engine, which reports them as anomalies.
func (ip *InputParser) ValidateConfiguration(plan *domain.Plan) error {
	if err := ip.validateProfile(&plan.Profile); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	if len(plan.Accounts) == 0 {
		return fmt.Errorf("no accounts provided")
	}
	seen := make(map[string]bool, len(plan.Accounts))
	for i, a := range plan.Accounts {
		if a.ID == "" {
			return fmt.Errorf("account %d: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
	}

	if plan.InflationRate != nil && plan.InflationRate.LessThan(decimal.NewFromFloat(-0.10)) {
		return fmt.Errorf("inflation rate cannot be less than -10%% (extreme deflation)")
	}

	if _, err := calculation.PolicyFor(plan.Withdrawal, plan.Goals); err != nil {
		return fmt.Errorf("withdrawal settings validation failed: %w", err)
	}

	for i, g := range plan.Goals {
		if err := ip.validateGoal(&g); err != nil {
			return fmt.Errorf("goal %d validation failed: %w", i, err)
		}
	}

	names := make(map[string]bool, len(plan.Scenarios))
	for i, sc := range plan.Scenarios {
		if err := ip.validateScenario(plan, &sc); err != nil {
			return fmt.Errorf("scenario %d validation failed: %w", i, err)
		}
		if names[sc.Name] {
			return fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		names[sc.Name] = true
	}

	return nil
}

// validateProfile validates the age anchors
func (ip *InputParser) validateProfile(p *domain.Profile) error {
	if p.BirthDate == nil && p.CurrentAge == nil {
		return fmt.Errorf("birth date or current age is required")
	}
	if p.CurrentAge != nil && *p.CurrentAge < 0 {
		return fmt.Errorf("current age cannot be negative")
	}
	if p.RetirementAge <= 0 {
		return fmt.Errorf("retirement age must be positive")
	}
	if p.Horizon() > domain.MaxHorizon {
		return fmt.Errorf("death age cannot exceed %d", domain.MaxHorizon)
	}
	if p.RetirementAge > p.Horizon() {
		return fmt.Errorf("retirement age cannot be after death age")
	}
	if p.CurrentAge != nil && *p.CurrentAge > p.Horizon() {
		return fmt.Errorf("current age cannot be after death age")
	}
	return nil
}

// validateGoal validates a single goal's shape
func (ip *InputParser) validateGoal(g *domain.Goal) error {
	if g.ID == "" {
		return fmt.Errorf("goal id is required")
	}
	if g.IsRetirement() {
		return nil
	}
	if g.Timing.Kind == "" {
		return fmt.Errorf("goal %s: timing kind is required", g.ID)
	}
	if g.Recurrence != nil && g.Recurrence.EveryYears < 0 {
		return fmt.Errorf("goal %s: recurrence every_years cannot be negative", g.ID)
	}
	return nil
}

// validateScenario validates a scenario against the plan it varies
func (ip *InputParser) validateScenario(plan *domain.Plan, sc *domain.ScenarioSpec) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	applied := sc.Apply(*plan)
	if err := ip.validateProfile(&applied.Profile); err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if _, err := calculation.PolicyFor(applied.Withdrawal, applied.Goals); err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	for id := range sc.GrowthOverrides {
		found := false
		for _, a := range plan.Accounts {
			if a.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("scenario %s: growth override for unknown account %q", sc.Name, id)
		}
	}
	return nil
}

// CreateExampleConfiguration creates an example plan
func (ip *InputParser) CreateExampleConfiguration() *domain.Plan {
	birthDate, _ := time.Parse("2006-01-02", "1985-04-12")
	houseDate, _ := time.Parse("2006-01-02", "2029-06-01")

	rate := func(f float64) *decimal.Decimal {
		d := decimal.NewFromFloat(f)
		return &d
	}
	str := func(s string) *string { return &s }
	age := func(a int) *int { return &a }

	retireEarly := 60
	return &domain.Plan{
		Name: "Household plan",
		Profile: domain.Profile{
			BirthDate:     &birthDate,
			RetirementAge: 65,
			DeathAge:      95,
		},
		InflationRate: rate(0.025),
		Withdrawal: domain.WithdrawalSettings{
			Policy: domain.PolicyOrdered,
			Order:  []string{"brokerage", "401k", "roth"},
		},
		Accounts: []domain.Account{
			{ID: "brokerage", Name: "Taxable brokerage", Category: "taxable", Balance: decimal.NewFromInt(85000), GrowthRate: rate(0.06)},
			{ID: "401k", Name: "Employer 401(k)", Category: "tax_deferred", Balance: decimal.NewFromInt(240000), GrowthRate: rate(0.07)},
			{ID: "roth", Name: "Roth IRA", Category: "tax_free", Balance: decimal.NewFromInt(60000), GrowthRate: rate(0.07)},
			{ID: "cash", Name: "Emergency fund", Category: "cash", Balance: decimal.NewFromInt(25000), GrowthRate: rate(0.02)},
		},
		Contributions: []domain.Contribution{
			{ID: "401k-deferral", Amount: decimal.NewFromInt(1500), Frequency: domain.FrequencyMonthly, AccountID: str("401k")},
			{ID: "roth-annual", Amount: decimal.NewFromInt(7000), Frequency: domain.FrequencyAnnual, AccountID: str("roth")},
			{ID: "general-savings", Amount: decimal.NewFromInt(250), Frequency: domain.FrequencyWeekly},
		},
		Expenses: []domain.Expense{
			{ID: "housing", Name: "Housing", Amount: decimal.NewFromInt(2400), Frequency: domain.FrequencyMonthly, Category: "essential"},
			{ID: "living", Name: "Living costs", Amount: decimal.NewFromInt(2000), Frequency: domain.FrequencyMonthly, Category: "essential"},
			{ID: "healthcare", Name: "Healthcare", Amount: decimal.NewFromInt(1800), Frequency: domain.FrequencyQuarterly, Category: "essential", GrowthRate: rate(0.05)},
			{ID: "travel", Name: "Travel", Amount: decimal.NewFromInt(6000), Frequency: domain.FrequencyAnnual, Category: "discretionary"},
		},
		Incomes: []domain.Income{
			{ID: "salary", Name: "Salary", Amount: decimal.NewFromInt(125000), Frequency: domain.FrequencyAnnual, GrowthRate: rate(0.03)},
			{ID: "social-security", Name: "Social Security", Amount: decimal.NewFromInt(2800), Frequency: domain.FrequencyMonthly, GrowthRate: rate(0.02), StartAge: age(67)},
		},
		Goals: []domain.Goal{
			{ID: "retirement", Name: "Retire at 65", Type: domain.GoalTypeRetirement, TargetAmount: decimal.NewFromInt(1500000), Timing: domain.Timing{Kind: domain.TimingRetirement}},
			{ID: "house", Name: "House down payment", Type: "purchase", TargetAmount: decimal.NewFromInt(60000), Timing: domain.Timing{Kind: domain.TimingDate, Date: &houseDate}, SourceAccountID: str("brokerage")},
			{
				ID: "car", Name: "Replace car", Type: "purchase", TargetAmount: decimal.NewFromInt(35000),
				Timing:     domain.Timing{Kind: domain.TimingAge, Age: age(45)},
				Recurrence: &domain.Recurrence{Frequency: domain.FrequencyAnnual, EveryYears: 8, End: &domain.Timing{Kind: domain.TimingAge, Age: age(77)}},
				GrowthRate: rate(0.025),
			},
		},
		Scenarios: []domain.ScenarioSpec{
			{Name: "Current plan"},
			{
				Name:          "Retire at 60",
				RetirementAge: &retireEarly,
				Withdrawal:    &domain.WithdrawalSettings{Policy: domain.PolicyProportional},
				AddContributions: []domain.Contribution{
					{ID: "catch-up", Amount: decimal.NewFromInt(500), Frequency: domain.FrequencyMonthly, AccountID: str("401k")},
				},
			},
		},
	}
}
