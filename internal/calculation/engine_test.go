package calculation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, format)
}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, format)
}
func (l *recordingLogger) Errorf(string, ...any) {}

func TestSetLogger(t *testing.T) {
	pe := NewProjectionEngine()
	pe.SetLogger(nil)
	assert.IsType(t, NopLogger{}, pe.Logger)

	rl := &recordingLogger{}
	pe.SetLogger(rl)
	in := retiredInput(
		[]domain.Account{account("only", "1000", "0")},
		[]domain.Expense{flatExpense("living", "5000")},
		domain.WithdrawalSettings{Policy: domain.PolicyProportional},
	)
	_, err := pe.RunProjection(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, rl.infos)
	assert.NotEmpty(t, rl.warns, "plan failure is logged")
}

func TestRunComparisonSameShape(t *testing.T) {
	current := accumulationInput()
	proposed := accumulationInput()
	proposed.Name = "proposed"
	proposed.Profile.RetirementAge = 60
	proposed.Profile.DeathAge = 75
	proposed.Contributions = append(proposed.Contributions, domain.Contribution{
		ID: "c2", Amount: dec("250"), Frequency: domain.FrequencyMonthly, AccountID: strPtr("401k"),
	})

	cmp, err := NewProjectionEngine().RunComparison(context.Background(), current, proposed)
	require.NoError(t, err)
	require.Len(t, cmp.Scenarios, 2)

	a, b := cmp.Scenarios[0], cmp.Scenarios[1]
	require.Equal(t, len(a.Points), len(b.Points))
	for i := range a.Points {
		assert.Equal(t, a.Points[i].Age, b.Points[i].Age)
	}
	assert.Equal(t, 75, a.Horizon, "shorter horizon is extended")
	assert.Equal(t, 70, current.Profile.DeathAge, "caller's input untouched")

	require.Len(t, cmp.Deltas, len(a.Points))
	d31 := cmp.Deltas[1]
	assert.Equal(t, 31, d31.Age)
	assertDecimalEqual(t, b.Points[1].PortfolioValue.Sub(a.Points[1].PortfolioValue), d31.PortfolioValue)
	assert.True(t, d31.PortfolioValue.IsPositive())
}

func TestRunComparisonErrors(t *testing.T) {
	pe := NewProjectionEngine()
	_, err := pe.RunComparison(context.Background(), nil, accumulationInput())
	assert.ErrorIs(t, err, ErrInvalidInput)

	other := accumulationInput()
	other.AsOf = testAsOf.AddDate(1, 0, 0)
	_, err = pe.RunComparison(context.Background(), accumulationInput(), other)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := accumulationInput()
	bad.Withdrawal.Policy = ""
	_, err = pe.RunComparison(context.Background(), accumulationInput(), bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "proposed scenario")
}

func examplePlan() domain.Plan {
	return domain.Plan{
		Name:       "household",
		Profile:    domain.Profile{CurrentAge: intPtr(45), RetirementAge: 65, DeathAge: 90},
		Withdrawal: domain.WithdrawalSettings{Policy: domain.PolicyOrdered, Order: []string{"brokerage", "ira"}},
		Accounts:   []domain.Account{account("brokerage", "50000", "0.05"), account("ira", "200000", "0.06")},
		Contributions: []domain.Contribution{
			{ID: "c1", Amount: dec("1000"), Frequency: domain.FrequencyMonthly, AccountID: strPtr("ira")},
		},
		Expenses: []domain.Expense{{ID: "living", Amount: dec("4000"), Frequency: domain.FrequencyMonthly}},
		Incomes:  []domain.Income{{ID: "salary", Amount: dec("120000"), Frequency: domain.FrequencyAnnual}},
	}
}

func TestRunScenarios(t *testing.T) {
	pe := NewProjectionEngine()

	t.Run("plan without scenarios", func(t *testing.T) {
		cmp, err := pe.RunScenarios(context.Background(), examplePlan(), testAsOf)
		require.NoError(t, err)
		require.Len(t, cmp.Scenarios, 1)
		assert.Empty(t, cmp.Deltas)
		assert.Equal(t, "household", cmp.Scenarios[0].Name)
	})

	t.Run("current and proposed", func(t *testing.T) {
		plan := examplePlan()
		plan.Scenarios = []domain.ScenarioSpec{
			{Name: "current"},
			{Name: "retire early", RetirementAge: intPtr(60), Withdrawal: &domain.WithdrawalSettings{Policy: domain.PolicyProportional}},
		}
		cmp, err := pe.RunScenarios(context.Background(), plan, testAsOf)
		require.NoError(t, err)
		require.Len(t, cmp.Scenarios, 2)
		assert.Equal(t, "current", cmp.Scenarios[0].Name)
		assert.Equal(t, domain.PolicyProportional, cmp.Scenarios[1].Policy)
		assert.Equal(t, 60, cmp.Scenarios[1].RetirementAge)
		assert.NotEmpty(t, cmp.Deltas)
	})

	t.Run("plan as-of wins", func(t *testing.T) {
		plan := examplePlan()
		pinned := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
		plan.AsOf = &pinned
		cmp, err := pe.RunScenarios(context.Background(), plan, testAsOf)
		require.NoError(t, err)
		assert.Equal(t, 2030, cmp.Scenarios[0].Points[0].Year)
	})
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(accumulationInput())
	require.NoError(t, err)
	b, err := Fingerprint(accumulationInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	later := accumulationInput()
	later.AsOf = later.AsOf.Add(5 * time.Hour)
	c, err := Fingerprint(later)
	require.NoError(t, err)
	assert.Equal(t, a, c, "time of day does not matter")

	changed := accumulationInput()
	changed.Accounts[0].Balance = dec("10001")
	d, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	_, err = Fingerprint(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProjectionResultCarriesFingerprint(t *testing.T) {
	in := accumulationInput()
	fp, err := Fingerprint(in)
	require.NoError(t, err)
	assert.Equal(t, fp, run(t, in).Fingerprint)
}

func TestDefaultAsOf(t *testing.T) {
	defer SetNowFunc(time.Now)
	SetNowFunc(func() time.Time { return time.Date(2026, 10, 18, 15, 4, 5, 0, time.FixedZone("X", 3600)) })
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), DefaultAsOf())
}
