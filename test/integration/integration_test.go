package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/config"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const examplePlan = "../testdata/example_plan.yaml"

func loadExample(t *testing.T) *domain.Plan {
	t.Helper()
	plan, err := config.NewInputParser().LoadFromFile(examplePlan)
	require.NoError(t, err)
	return plan
}

func TestEndToEndProjection(t *testing.T) {
	plan := loadExample(t)
	require.Len(t, plan.Scenarios, 2)

	// the plan's own as_of wins over the host date
	results, err := calculation.NewProjectionEngine().RunScenarios(context.Background(), *plan, time.Now())
	require.NoError(t, err)
	require.Len(t, results.Scenarios, 2)

	current, early := results.Scenarios[0], results.Scenarios[1]
	assert.Equal(t, "Current plan", current.Name)
	assert.Equal(t, 2025, current.AsOf.Year())
	assert.Equal(t, domain.PolicyOrdered, current.Policy)
	assert.Equal(t, domain.PolicyProportional, early.Policy)
	assert.Equal(t, 60, early.RetirementAge)
	assert.Len(t, current.Points, 61)
	assert.Len(t, results.Deltas, 61)

	p31, ok := current.PointAt(31)
	require.True(t, ok)
	assert.Equal(t, "16919.19", p31.Balance("brokerage").StringFixed(2))

	var sawFrequency bool
	for _, a := range current.Anomalies {
		if a.Kind == domain.AnomalyUnknownFrequency && a.RecordID == "gym-membership" {
			sawFrequency = true
		}
	}
	assert.True(t, sawFrequency, "fortnightly contribution should be reported")

	require.Len(t, current.GoalEvents, 1)
	assert.Equal(t, "sabbatical", current.GoalEvents[0].GoalID)
	assert.Equal(t, 40, current.GoalEvents[0].Age)
	assert.Empty(t, early.GoalEvents)

	for _, sc := range results.Scenarios {
		assert.True(t, sc.Summary.StartingPortfolio.Equal(decimal.NewFromInt(15000)), sc.Name)
		assert.NotNil(t, sc.RetirementGoalFunded, sc.Name)
		for _, p := range sc.Points {
			for id, b := range p.Balances {
				assert.False(t, b.IsNegative(), "%s balance of %s negative at age %d", sc.Name, id, p.Age)
			}
		}
	}

	// retiring five years earlier leaves less at 65
	delta, ok := findDelta(results.Deltas, 65)
	require.True(t, ok)
	assert.True(t, delta.PortfolioValue.IsNegative(), delta.PortfolioValue.String())
}

func findDelta(deltas []domain.PointDelta, age int) (domain.PointDelta, bool) {
	for _, d := range deltas {
		if d.Age == age {
			return d, true
		}
	}
	return domain.PointDelta{}, false
}

func TestCachedEngineMatchesEngine(t *testing.T) {
	plan := loadExample(t)
	metrics := observability.NewMetrics()
	cached := calculation.NewCachedEngine(calculation.NewProjectionEngine(), time.Minute, metrics)
	defer cached.Close()

	ctx := context.Background()
	first, err := cached.RunScenarios(ctx, *plan, time.Now())
	require.NoError(t, err)
	second, err := cached.RunScenarios(ctx, *plan, time.Now())
	require.NoError(t, err)

	direct, err := calculation.NewProjectionEngine().RunScenarios(ctx, *plan, time.Now())
	require.NoError(t, err)

	for i := range direct.Scenarios {
		assert.Equal(t, direct.Scenarios[i].Fingerprint, first.Scenarios[i].Fingerprint)
		assert.True(t, direct.Scenarios[i].Summary.FinalPortfolio.Equal(second.Scenarios[i].Summary.FinalPortfolio))
	}

	stats := metrics.Snapshot(calculation.ProjectionCacheName)
	assert.Equal(t, 2.0, stats.CacheMisses)
	assert.Equal(t, 2.0, stats.CacheHits)
}

func TestConfigurationValidation(t *testing.T) {
	parser := config.NewInputParser()

	plan := loadExample(t)
	assert.NoError(t, parser.ValidateConfiguration(plan))

	bad := *plan
	bad.Withdrawal = domain.WithdrawalSettings{Policy: "random"}
	bad.Goals = nil
	err := parser.ValidateConfiguration(&bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, calculation.ErrInvalidInput)
}
