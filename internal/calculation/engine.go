package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/pkg/dateutil"
)

// ProjectionEngine runs projections. It holds no state between runs, so one
// engine can be shared by concurrent callers.
type ProjectionEngine struct {
	Logger Logger
}

// NewProjectionEngine creates a new projection engine
func NewProjectionEngine() *ProjectionEngine {
	return &ProjectionEngine{Logger: NopLogger{}}
}

// SetLogger sets the logger for the projection engine. If nil is provided, a no-op logger is used.
func (pe *ProjectionEngine) SetLogger(l Logger) {
	if l == nil {
		pe.Logger = NopLogger{}
		return
	}
	pe.Logger = l
}

// RunProjection simulates in from the current age to the horizon.
func (pe *ProjectionEngine) RunProjection(ctx context.Context, in *ProjectionInput) (*domain.ProjectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim, err := newSimulation(in, pe.Logger)
	if err != nil {
		return nil, err
	}
	fp, err := Fingerprint(in)
	if err != nil {
		return nil, fmt.Errorf("fingerprint input: %w", err)
	}

	result := sim.run()
	result.Fingerprint = fp

	pe.Logger.Infof("projection %q: ages %d-%d, policy %s, final portfolio %s",
		result.Name, result.CurrentAge, result.Horizon, result.Policy, result.Summary.FinalPortfolio.StringFixed(2))
	return result, nil
}

// RunComparison runs the current and proposed inputs over a shared horizon so
// their series line up age for age, and computes proposed-minus-current deltas.
func (pe *ProjectionEngine) RunComparison(ctx context.Context, current, proposed *ProjectionInput) (*domain.ScenarioComparison, error) {
	cur, prop, err := alignInputs(current, proposed)
	if err != nil {
		return nil, err
	}

	a, err := pe.RunProjection(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("current scenario: %w", err)
	}
	b, err := pe.RunProjection(ctx, prop)
	if err != nil {
		return nil, fmt.Errorf("proposed scenario: %w", err)
	}
	return Compare(a, b), nil
}

// RunScenarios projects every scenario of the plan. A plan without scenarios
// is projected as-is. Two scenarios are compared as current and proposed.
func (pe *ProjectionEngine) RunScenarios(ctx context.Context, plan domain.Plan, asOf time.Time) (*domain.ScenarioComparison, error) {
	return runScenarios(ctx, pe, plan, asOf)
}

// Runner is implemented by ProjectionEngine and CachedEngine.
type Runner interface {
	RunProjection(ctx context.Context, in *ProjectionInput) (*domain.ProjectionResult, error)
	RunComparison(ctx context.Context, current, proposed *ProjectionInput) (*domain.ScenarioComparison, error)
}

func runScenarios(ctx context.Context, r Runner, plan domain.Plan, asOf time.Time) (*domain.ScenarioComparison, error) {
	inputs := ScenarioInputs(plan, asOf)
	if len(inputs) == 2 {
		return r.RunComparison(ctx, inputs[0], inputs[1])
	}

	comparison := &domain.ScenarioComparison{}
	for _, in := range inputs {
		res, err := r.RunProjection(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("RunProjection %q failed: %w", in.Name, err)
		}
		comparison.Scenarios = append(comparison.Scenarios, *res)
	}
	return comparison, nil
}

// ScenarioInputs expands a plan into one input per scenario.
func ScenarioInputs(plan domain.Plan, asOf time.Time) []*ProjectionInput {
	if len(plan.Scenarios) == 0 {
		return []*ProjectionInput{NewProjectionInput(plan, asOf)}
	}
	inputs := make([]*ProjectionInput, len(plan.Scenarios))
	for i, sc := range plan.Scenarios {
		inputs[i] = NewProjectionInput(sc.Apply(plan), asOf)
	}
	return inputs
}

// alignInputs copies both inputs and extends the shorter horizon so both
// series cover the same ages.
func alignInputs(current, proposed *ProjectionInput) (*ProjectionInput, *ProjectionInput, error) {
	if current == nil || proposed == nil {
		return nil, nil, fmt.Errorf("%w: comparison needs both scenarios", ErrInvalidInput)
	}
	if !dateutil.SameDay(current.AsOf, proposed.AsOf) {
		return nil, nil, fmt.Errorf("%w: scenarios have different as-of dates", ErrInvalidInput)
	}
	cur, prop := *current, *proposed
	horizon := cur.Profile.Horizon()
	if h := prop.Profile.Horizon(); h > horizon {
		horizon = h
	}
	cur.Profile.DeathAge = horizon
	prop.Profile.DeathAge = horizon
	return &cur, &prop, nil
}

// Compare pairs two same-shaped results and computes per-age deltas.
func Compare(current, proposed *domain.ProjectionResult) *domain.ScenarioComparison {
	comparison := &domain.ScenarioComparison{
		Scenarios: []domain.ProjectionResult{*current, *proposed},
	}
	for _, p := range proposed.Points {
		c, ok := current.PointAt(p.Age)
		if !ok {
			continue
		}
		comparison.Deltas = append(comparison.Deltas, domain.PointDelta{
			Age:            p.Age,
			Year:           p.Year,
			PortfolioValue: p.PortfolioValue.Sub(c.PortfolioValue),
			Expenses:       p.Expenses.Sub(c.Expenses),
			CashFlow:       p.CashFlow.Sub(c.CashFlow),
		})
	}
	return comparison
}
