// Package postgres reads plan tables directly from Postgres through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("postgres")

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements store.Tables over a connection pool.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

var _ store.Tables = (*Store)(nil)

// Open creates a pool for databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const (
	profileQuery = `SELECT user_id::text, name, birth_date::text, current_age, retirement_age, death_age,
		inflation_rate, withdrawal_policy, withdrawal_order
		FROM profiles WHERE user_id = $1 LIMIT 1`
	assetsQuery = `SELECT id::text, name, category, balance, growth_rate
		FROM assets WHERE user_id = $1 ORDER BY id`
	savingsQuery = `SELECT id::text, amount, frequency, account_id::text, goal_id::text
		FROM savings WHERE user_id = $1 ORDER BY id`
	expensesQuery = `SELECT id::text, name, amount, frequency, category, growth_rate
		FROM expenses WHERE user_id = $1 ORDER BY id`
	incomesQuery = `SELECT id::text, name, amount, frequency, growth_rate, start_age, end_age
		FROM incomes WHERE user_id = $1 ORDER BY id`
	goalsQuery = `SELECT id::text, name, type, target_amount, timing_kind, timing_date::text, timing_age,
		timing_year, recurrence_frequency, recurrence_every_years,
		recurrence_start_kind, recurrence_start_date::text, recurrence_start_age, recurrence_start_year,
		recurrence_end_kind, recurrence_end_date::text, recurrence_end_age, recurrence_end_year,
		source_account_id::text, withdrawal_order, growth_rate
		FROM goals WHERE user_id = $1 ORDER BY id`
)

// list runs query for userID and scans every row with scan.
func list[T any](ctx context.Context, s *Store, table, query, userID string, scan func(pgx.Rows, *T) error) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Postgres.List."+table, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: "postgres/" + table, Err: err}
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var row T
		if err := scan(rows, &row); err != nil {
			return nil, &domain.ErrExternalService{Service: "postgres/" + table, Err: fmt.Errorf("scan: %w", err)}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/" + table, Err: err}
	}
	return out, nil
}

// GetProfile fetches the user's profile row.
func (s *Store) GetProfile(ctx context.Context, userID string) (*store.ProfileRow, error) {
	rows, err := list(ctx, s, "profiles", profileQuery, userID, func(r pgx.Rows, p *store.ProfileRow) error {
		return r.Scan(&p.UserID, &p.Name, &p.BirthDate, &p.CurrentAge, &p.RetirementAge, &p.DeathAge,
			&p.InflationRate, &p.WithdrawalPolicy, &p.WithdrawalOrder)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &rows[0], nil
}

// ListAssets fetches the user's accounts.
func (s *Store) ListAssets(ctx context.Context, userID string) ([]store.AssetRow, error) {
	return list(ctx, s, "assets", assetsQuery, userID, func(r pgx.Rows, a *store.AssetRow) error {
		return r.Scan(&a.ID, &a.Name, &a.Category, &a.Balance, &a.GrowthRate)
	})
}

// ListSavings fetches the user's contributions.
func (s *Store) ListSavings(ctx context.Context, userID string) ([]store.SavingRow, error) {
	return list(ctx, s, "savings", savingsQuery, userID, func(r pgx.Rows, sv *store.SavingRow) error {
		return r.Scan(&sv.ID, &sv.Amount, &sv.Frequency, &sv.AccountID, &sv.GoalID)
	})
}

// ListExpenses fetches the user's expenses.
func (s *Store) ListExpenses(ctx context.Context, userID string) ([]store.ExpenseRow, error) {
	return list(ctx, s, "expenses", expensesQuery, userID, func(r pgx.Rows, e *store.ExpenseRow) error {
		return r.Scan(&e.ID, &e.Name, &e.Amount, &e.Frequency, &e.Category, &e.GrowthRate)
	})
}

// ListIncomes fetches the user's incomes.
func (s *Store) ListIncomes(ctx context.Context, userID string) ([]store.IncomeRow, error) {
	return list(ctx, s, "incomes", incomesQuery, userID, func(r pgx.Rows, in *store.IncomeRow) error {
		return r.Scan(&in.ID, &in.Name, &in.Amount, &in.Frequency, &in.GrowthRate, &in.StartAge, &in.EndAge)
	})
}

// ListGoals fetches the user's goals.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]store.GoalRow, error) {
	return list(ctx, s, "goals", goalsQuery, userID, func(r pgx.Rows, g *store.GoalRow) error {
		return r.Scan(&g.ID, &g.Name, &g.Type, &g.TargetAmount, &g.TimingKind, &g.TimingDate, &g.TimingAge,
			&g.TimingYear, &g.RecurrenceFrequency, &g.RecurrenceEvery,
			&g.RecurrenceStartKind, &g.RecurrenceStartDate, &g.RecurrenceStartAge, &g.RecurrenceStartYear,
			&g.RecurrenceEndKind, &g.RecurrenceEndDate, &g.RecurrenceEndAge, &g.RecurrenceEndYear,
			&g.SourceAccountID, &g.WithdrawalOrder, &g.GrowthRate)
	})
}
