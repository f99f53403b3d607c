package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }
func iptr(i int) *int         { return &i }

func TestAssembleAppliesDefaults(t *testing.T) {
	plan := Assemble(&ProfileRow{Name: "x", RetirementAge: 65}, nil, nil, nil, nil, nil,
		Defaults{WithdrawalPolicy: domain.PolicyProportional, DeathAge: 95})
	assert.Equal(t, 95, plan.Profile.DeathAge)
	assert.Equal(t, domain.PolicyProportional, plan.Withdrawal.Policy)
	assert.Nil(t, plan.InflationRate)
}

func TestAssembleSanitizesFloats(t *testing.T) {
	plan := Assemble(nil,
		[]AssetRow{{ID: "a", Balance: math.NaN(), GrowthRate: fptr(math.Inf(1))}},
		[]SavingRow{{ID: "s", Amount: math.Inf(-1), Frequency: "monthly"}},
		nil, nil, nil, Defaults{})

	require.Len(t, plan.Accounts, 1)
	assert.True(t, plan.Accounts[0].Balance.IsZero())
	require.NotNil(t, plan.Accounts[0].GrowthRate)
	assert.True(t, plan.Accounts[0].GrowthRate.IsZero())
	assert.True(t, plan.Contributions[0].Amount.IsZero())
}

func TestAssembleGoals(t *testing.T) {
	plan := Assemble(nil, nil, nil, nil, nil, []GoalRow{
		{ID: "g1", TimingKind: "date", TimingDate: sptr("2030-01-01T00:00:00Z")},
		{ID: "g2", TimingKind: "date", TimingDate: sptr("garbage")},
		{ID: "g3", TimingKind: "retirement", RecurrenceFrequency: sptr("quarterly")},
	}, Defaults{})

	require.Len(t, plan.Goals, 3)
	require.NotNil(t, plan.Goals[0].Timing.Date)
	assert.Equal(t, 2030, plan.Goals[0].Timing.Date.Year())
	assert.Nil(t, plan.Goals[1].Timing.Date, "unparsable dates surface as unresolvable timing")
	require.NotNil(t, plan.Goals[2].Recurrence)
	assert.Equal(t, domain.FrequencyQuarterly, plan.Goals[2].Recurrence.Frequency)
	assert.Zero(t, plan.Goals[2].Recurrence.EveryYears)
	assert.Nil(t, plan.Goals[2].Recurrence.End)
}

func TestAssembleGoalRecurrenceWindow(t *testing.T) {
	plan := Assemble(nil, nil, nil, nil, nil, []GoalRow{{
		ID:                  "travel",
		TimingKind:          "retirement",
		RecurrenceStartKind: sptr("year"),
		RecurrenceStartYear: iptr(2040),
		RecurrenceEndKind:   sptr("age"),
		RecurrenceEndAge:    iptr(75),
	}, {
		ID:                "care",
		TimingKind:        "age",
		TimingAge:         iptr(80),
		RecurrenceEvery:   iptr(2),
		RecurrenceEndKind: sptr("date"),
		RecurrenceEndDate: sptr("2070-06-30"),
	}}, Defaults{})

	require.Len(t, plan.Goals, 2)
	travel := plan.Goals[0].Recurrence
	require.NotNil(t, travel)
	require.NotNil(t, travel.Start)
	assert.Equal(t, domain.TimingYear, travel.Start.Kind)
	assert.Equal(t, 2040, *travel.Start.Year)
	require.NotNil(t, travel.End)
	assert.Equal(t, domain.TimingAge, travel.End.Kind)
	assert.Equal(t, 75, *travel.End.Age)

	care := plan.Goals[1].Recurrence
	require.NotNil(t, care)
	assert.Equal(t, 2, care.EveryYears)
	assert.Nil(t, care.Start)
	require.NotNil(t, care.End)
	require.NotNil(t, care.End.Date)
	assert.Equal(t, 2070, care.End.Date.Year())
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("8f14e45f-ceea-467e-a9b6-0c4f3f2c9a11"))
	err := ValidateUserID("robert")
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
}

type failingTables struct{}

func (failingTables) GetProfile(context.Context, string) (*ProfileRow, error) {
	return &ProfileRow{}, nil
}
func (failingTables) ListAssets(context.Context, string) ([]AssetRow, error) {
	return nil, &domain.ErrExternalService{Service: "test/assets", Err: errors.New("boom")}
}
func (failingTables) ListSavings(context.Context, string) ([]SavingRow, error)   { return nil, nil }
func (failingTables) ListExpenses(context.Context, string) ([]ExpenseRow, error) { return nil, nil }
func (failingTables) ListIncomes(context.Context, string) ([]IncomeRow, error)   { return nil, nil }
func (failingTables) ListGoals(context.Context, string) ([]GoalRow, error)       { return nil, nil }

func TestLoaderPropagatesFailures(t *testing.T) {
	_, err := NewLoader(failingTables{}, nil, Defaults{}).LoadPlan(context.Background(), "8f14e45f-ceea-467e-a9b6-0c4f3f2c9a11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assets fetch")
	var ext *domain.ErrExternalService
	assert.True(t, errors.As(err, &ext))
}
