package postgres

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "8f14e45f-ceea-467e-a9b6-0c4f3f2c9a11"

// fakeRows replays fixed rows; Scan assigns each value to the matching destination.
type fakeRows struct {
	data [][]any
	i    int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.i-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(row[i]))
	}
	return nil
}

type fakeDB struct {
	mu      sync.Mutex
	tables  map[string][][]any
	queries []string
	fail    error
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.mu.Lock()
	db.queries = append(db.queries, sql)
	db.mu.Unlock()
	if db.fail != nil {
		return nil, db.fail
	}
	if len(args) != 1 || args[0] != testUserID {
		return nil, errors.New("unexpected args")
	}
	for table, rows := range db.tables {
		if strings.Contains(sql, "FROM "+table+" ") {
			return &fakeRows{data: rows}, nil
		}
	}
	return &fakeRows{}, nil
}

func sp(s string) *string   { return &s }
func ip(i int) *int         { return &i }
func fp(f float64) *float64 { return &f }

func TestLoadPlanFromPostgres(t *testing.T) {
	db := &fakeDB{tables: map[string][][]any{
		"profiles": {{testUserID, "Ana", sp("1975-09-30"), (*int)(nil), 60, ip(92), fp(0.02), sp("proportional"), []string(nil)}},
		"assets":   {{"a1", "Brokerage", "taxable", 100000.0, fp(0.05)}},
		"savings":  {{"s1", 300.0, "monthly", sp("a1"), (*string)(nil)}},
		"expenses": {{"e1", "Living", 36000.0, "annual", "essential", (*float64)(nil)}},
		"incomes":  {{"i1", "Pension", 1500.0, "monthly", fp(0.01), ip(60), (*int)(nil)}},
		"goals": {
			{"g1", "Wedding", "event", 25000.0, "date", sp("2031-05-01"), (*int)(nil),
				(*int)(nil), (*string)(nil), (*int)(nil),
				(*string)(nil), (*string)(nil), (*int)(nil), (*int)(nil),
				(*string)(nil), (*string)(nil), (*int)(nil), (*int)(nil),
				sp("a1"), []string(nil), (*float64)(nil)},
			{"g2", "Travel", "travel", 6000.0, "retirement", (*string)(nil), (*int)(nil),
				(*int)(nil), sp("annual"), (*int)(nil),
				(*string)(nil), (*string)(nil), (*int)(nil), (*int)(nil),
				sp("age"), (*string)(nil), ip(75), (*int)(nil),
				(*string)(nil), []string(nil), (*float64)(nil)},
		},
	}}
	s := &Store{db: db}

	plan, err := store.NewLoader(s, nil, store.Defaults{DeathAge: 95}).LoadPlan(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, "Ana", plan.Name)
	assert.Equal(t, 60, plan.Profile.RetirementAge)
	assert.Equal(t, 92, plan.Profile.DeathAge)
	assert.Equal(t, domain.PolicyProportional, plan.Withdrawal.Policy)
	require.Len(t, plan.Accounts, 1)
	assert.Equal(t, "100000", plan.Accounts[0].Balance.String())
	require.Len(t, plan.Incomes, 1)
	assert.Equal(t, 60, *plan.Incomes[0].StartAge)
	require.Len(t, plan.Goals, 2)
	require.NotNil(t, plan.Goals[0].Timing.Date)
	assert.Equal(t, 2031, plan.Goals[0].Timing.Date.Year())
	assert.Nil(t, plan.Goals[0].Recurrence)
	require.NotNil(t, plan.Goals[1].Recurrence)
	require.NotNil(t, plan.Goals[1].Recurrence.End)
	assert.Equal(t, 75, *plan.Goals[1].Recurrence.End.Age)
	assert.Len(t, db.queries, 6)
}

func TestGetProfileNotFound(t *testing.T) {
	s := &Store{db: &fakeDB{tables: map[string][][]any{}}}
	_, err := s.GetProfile(context.Background(), testUserID)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestQueryFailureIsExternal(t *testing.T) {
	s := &Store{db: &fakeDB{fail: errors.New("connection refused")}}
	_, err := s.ListAssets(context.Background(), testUserID)
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "postgres/assets", ext.Service)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)

	_, err = Open(context.Background(), "::not a url::")
	assert.Error(t, err)
}
