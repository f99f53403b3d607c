// Package store loads a user's plan from the host application's tables.
// Adapters (Supabase PostgREST, direct Postgres) implement Tables; Loader
// fans the per-table reads out concurrently and assembles a domain.Plan.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/resilience"
	fpdecimal "github.com/rpgo/finplan/pkg/decimal"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("store")

// PlanSource retrieves a user's plan.
type PlanSource interface {
	LoadPlan(ctx context.Context, userID string) (*domain.Plan, error)
}

// Tables reads the raw rows of one user. GetProfile returns
// *domain.ErrNotFound when the user has no profile row.
type Tables interface {
	GetProfile(ctx context.Context, userID string) (*ProfileRow, error)
	ListAssets(ctx context.Context, userID string) ([]AssetRow, error)
	ListSavings(ctx context.Context, userID string) ([]SavingRow, error)
	ListExpenses(ctx context.Context, userID string) ([]ExpenseRow, error)
	ListIncomes(ctx context.Context, userID string) ([]IncomeRow, error)
	ListGoals(ctx context.Context, userID string) ([]GoalRow, error)
}

// ProfileRow maps the profiles table.
type ProfileRow struct {
	UserID           string   `json:"user_id"`
	Name             string   `json:"name"`
	BirthDate        *string  `json:"birth_date"`
	CurrentAge       *int     `json:"current_age"`
	RetirementAge    int      `json:"retirement_age"`
	DeathAge         *int     `json:"death_age"`
	InflationRate    *float64 `json:"inflation_rate"`
	WithdrawalPolicy *string  `json:"withdrawal_policy"`
	WithdrawalOrder  []string `json:"withdrawal_order"`
}

// AssetRow maps the assets table.
type AssetRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Balance    float64  `json:"balance"`
	GrowthRate *float64 `json:"growth_rate"`
}

// SavingRow maps the savings table (contributions).
type SavingRow struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	Frequency string  `json:"frequency"`
	AccountID *string `json:"account_id"`
	GoalID    *string `json:"goal_id"`
}

// ExpenseRow maps the expenses table.
type ExpenseRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Amount     float64  `json:"amount"`
	Frequency  string   `json:"frequency"`
	Category   string   `json:"category"`
	GrowthRate *float64 `json:"growth_rate"`
}

// IncomeRow maps the incomes table.
type IncomeRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Amount     float64  `json:"amount"`
	Frequency  string   `json:"frequency"`
	GrowthRate *float64 `json:"growth_rate"`
	StartAge   *int     `json:"start_age"`
	EndAge     *int     `json:"end_age"`
}

// GoalRow maps the goals table. Timing and recurrence are flattened into columns.
type GoalRow struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	TargetAmount        float64  `json:"target_amount"`
	TimingKind          string   `json:"timing_kind"`
	TimingDate          *string  `json:"timing_date"`
	TimingAge           *int     `json:"timing_age"`
	TimingYear          *int     `json:"timing_year"`
	RecurrenceFrequency *string  `json:"recurrence_frequency"`
	RecurrenceEvery     *int     `json:"recurrence_every_years"`
	RecurrenceStartKind *string  `json:"recurrence_start_kind"`
	RecurrenceStartDate *string  `json:"recurrence_start_date"`
	RecurrenceStartAge  *int     `json:"recurrence_start_age"`
	RecurrenceStartYear *int     `json:"recurrence_start_year"`
	RecurrenceEndKind   *string  `json:"recurrence_end_kind"`
	RecurrenceEndDate   *string  `json:"recurrence_end_date"`
	RecurrenceEndAge    *int     `json:"recurrence_end_age"`
	RecurrenceEndYear   *int     `json:"recurrence_end_year"`
	SourceAccountID     *string  `json:"source_account_id"`
	WithdrawalOrder     []string `json:"withdrawal_order"`
	GrowthRate          *float64 `json:"growth_rate"`
}

// Defaults fill what stored profiles may leave out.
type Defaults struct {
	WithdrawalPolicy string
	DeathAge         int
}

// Loader implements PlanSource over any Tables adapter.
type Loader struct {
	tables   Tables
	bulkhead *resilience.Bulkhead
	defaults Defaults
}

// NewLoader creates a loader. A nil bulkhead leaves reads unbounded.
func NewLoader(tables Tables, bulkhead *resilience.Bulkhead, defaults Defaults) *Loader {
	return &Loader{tables: tables, bulkhead: bulkhead, defaults: defaults}
}

// ValidateUserID rejects ids that are not UUIDs before they reach a query string.
func ValidateUserID(userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return &domain.ErrValidation{Field: "user_id", Message: "must be a UUID"}
	}
	return nil
}

// LoadPlan reads the profile and the five collections concurrently and
// assembles them into a plan.
func (l *Loader) LoadPlan(ctx context.Context, userID string) (*domain.Plan, error) {
	ctx, span := tracer.Start(ctx, "Store.LoadPlan")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	var (
		profile  *ProfileRow
		assets   []AssetRow
		savings  []SavingRow
		expenses []ExpenseRow
		incomes  []IncomeRow
		goals    []GoalRow
	)

	g, gCtx := errgroup.WithContext(ctx)
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			call := func() error { return fn(gCtx) }
			var err error
			if l.bulkhead != nil {
				err = l.bulkhead.Do(gCtx, call)
			} else {
				err = call()
			}
			if err != nil {
				return fmt.Errorf("%s fetch: %w", name, err)
			}
			return nil
		})
	}

	run("profile", func(ctx context.Context) (err error) {
		profile, err = l.tables.GetProfile(ctx, userID)
		return err
	})
	run("assets", func(ctx context.Context) (err error) {
		assets, err = l.tables.ListAssets(ctx, userID)
		return err
	})
	run("savings", func(ctx context.Context) (err error) {
		savings, err = l.tables.ListSavings(ctx, userID)
		return err
	})
	run("expenses", func(ctx context.Context) (err error) {
		expenses, err = l.tables.ListExpenses(ctx, userID)
		return err
	})
	run("incomes", func(ctx context.Context) (err error) {
		incomes, err = l.tables.ListIncomes(ctx, userID)
		return err
	})
	run("goals", func(ctx context.Context) (err error) {
		goals, err = l.tables.ListGoals(ctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return Assemble(profile, assets, savings, expenses, incomes, goals, l.defaults), nil
}

// Assemble converts table rows into a plan. Float columns go through
// SafeAmount so NaN or infinite values become zero.
func Assemble(profile *ProfileRow, assets []AssetRow, savings []SavingRow, expenses []ExpenseRow, incomes []IncomeRow, goals []GoalRow, defaults Defaults) *domain.Plan {
	plan := &domain.Plan{}
	if profile != nil {
		plan.Name = profile.Name
		plan.UserID = profile.UserID
		plan.Profile = domain.Profile{
			BirthDate:     parseDate(profile.BirthDate),
			CurrentAge:    profile.CurrentAge,
			RetirementAge: profile.RetirementAge,
		}
		if profile.DeathAge != nil {
			plan.Profile.DeathAge = *profile.DeathAge
		}
		plan.InflationRate = rate(profile.InflationRate)
		if profile.WithdrawalPolicy != nil {
			plan.Withdrawal.Policy = *profile.WithdrawalPolicy
		}
		plan.Withdrawal.Order = profile.WithdrawalOrder
	}
	if plan.Profile.DeathAge == 0 {
		plan.Profile.DeathAge = defaults.DeathAge
	}
	if plan.Withdrawal.Policy == "" {
		plan.Withdrawal.Policy = defaults.WithdrawalPolicy
	}

	for _, a := range assets {
		plan.Accounts = append(plan.Accounts, domain.Account{
			ID:         a.ID,
			Name:       a.Name,
			Category:   a.Category,
			Balance:    calculation.SafeAmount(a.Balance),
			GrowthRate: rate(a.GrowthRate),
		})
	}
	for _, s := range savings {
		plan.Contributions = append(plan.Contributions, domain.Contribution{
			ID:        s.ID,
			Amount:    calculation.SafeAmount(s.Amount),
			Frequency: domain.Frequency(s.Frequency),
			AccountID: s.AccountID,
			GoalID:    s.GoalID,
		})
	}
	for _, e := range expenses {
		plan.Expenses = append(plan.Expenses, domain.Expense{
			ID:         e.ID,
			Name:       e.Name,
			Amount:     calculation.SafeAmount(e.Amount),
			Frequency:  domain.Frequency(e.Frequency),
			Category:   e.Category,
			GrowthRate: rate(e.GrowthRate),
		})
	}
	for _, in := range incomes {
		plan.Incomes = append(plan.Incomes, domain.Income{
			ID:         in.ID,
			Name:       in.Name,
			Amount:     calculation.SafeAmount(in.Amount),
			Frequency:  domain.Frequency(in.Frequency),
			GrowthRate: rate(in.GrowthRate),
			StartAge:   in.StartAge,
			EndAge:     in.EndAge,
		})
	}
	for _, g := range goals {
		goal := domain.Goal{
			ID:           g.ID,
			Name:         g.Name,
			Type:         g.Type,
			TargetAmount: calculation.SafeAmount(g.TargetAmount),
			Timing: domain.Timing{
				Kind: domain.TimingKind(g.TimingKind),
				Date: parseDate(g.TimingDate),
				Age:  g.TimingAge,
				Year: g.TimingYear,
			},
			SourceAccountID: g.SourceAccountID,
			WithdrawalOrder: g.WithdrawalOrder,
			GrowthRate:      rate(g.GrowthRate),
		}
		start := timing(g.RecurrenceStartKind, g.RecurrenceStartDate, g.RecurrenceStartAge, g.RecurrenceStartYear)
		end := timing(g.RecurrenceEndKind, g.RecurrenceEndDate, g.RecurrenceEndAge, g.RecurrenceEndYear)
		if g.RecurrenceFrequency != nil || g.RecurrenceEvery != nil || start != nil || end != nil {
			goal.Recurrence = &domain.Recurrence{Start: start, End: end}
			if g.RecurrenceFrequency != nil {
				goal.Recurrence.Frequency = domain.Frequency(*g.RecurrenceFrequency)
			}
			if g.RecurrenceEvery != nil {
				goal.Recurrence.EveryYears = *g.RecurrenceEvery
			}
		}
		plan.Goals = append(plan.Goals, goal)
	}
	return plan
}

// timing builds a recurrence bound from its columns; a null kind means unbounded.
func timing(kind, date *string, age, year *int) *domain.Timing {
	if kind == nil || *kind == "" {
		return nil
	}
	return &domain.Timing{Kind: domain.TimingKind(*kind), Date: parseDate(date), Age: age, Year: year}
}

func rate(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := fpdecimal.SafeFromFloatPtr(v, decimal.Zero)
	return &d
}

// parseDate accepts RFC 3339 timestamps and plain dates; anything else is dropped.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		t, err = time.Parse("2006-01-02", *s)
		if err != nil {
			return nil
		}
	}
	return &t
}
