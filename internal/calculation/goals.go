package calculation

import (
	"errors"
	"fmt"
	"time"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// ErrUnresolvableTiming is returned when a timing lacks the data its kind needs.
var ErrUnresolvableTiming = errors.New("unresolvable timing")

// CurrentAge derives the age at asOf, preferring the birth date over a stated age.
func CurrentAge(profile domain.Profile, asOf time.Time) (int, error) {
	if profile.BirthDate != nil {
		return dateutil.Age(*profile.BirthDate, asOf), nil
	}
	if profile.CurrentAge != nil {
		return *profile.CurrentAge, nil
	}
	return 0, fmt.Errorf("%w: profile needs a birth date or a current age", ErrInvalidInput)
}

// ResolveTiming converts a timing anchor into the age at which it falls.
func ResolveTiming(t domain.Timing, profile domain.Profile, asOf time.Time) (int, error) {
	switch t.Kind {
	case domain.TimingRetirement:
		return profile.RetirementAge, nil
	case domain.TimingDeath:
		return profile.Horizon(), nil
	case domain.TimingAge:
		if t.Age == nil {
			return 0, fmt.Errorf("%w: age timing without an age", ErrUnresolvableTiming)
		}
		return *t.Age, nil
	case domain.TimingYear:
		if t.Year == nil {
			return 0, fmt.Errorf("%w: year timing without a year", ErrUnresolvableTiming)
		}
		current, err := CurrentAge(profile, asOf)
		if err != nil {
			return 0, err
		}
		return current + (*t.Year - asOf.Year()), nil
	case domain.TimingDate:
		if t.Date == nil {
			return 0, fmt.Errorf("%w: date timing without a date", ErrUnresolvableTiming)
		}
		if profile.BirthDate != nil {
			return dateutil.Age(*profile.BirthDate, *t.Date), nil
		}
		current, err := CurrentAge(profile, asOf)
		if err != nil {
			return 0, err
		}
		return current + (t.Date.Year() - asOf.Year()), nil
	default:
		return 0, fmt.Errorf("%w: unknown timing kind %q", ErrUnresolvableTiming, t.Kind)
	}
}

// GoalOccurrence is one concrete withdrawal implied by a goal.
type GoalOccurrence struct {
	GoalID string
	Age    int
	Amount decimal.Decimal
}

// GoalOccurrences expands a goal into the ages it withdraws at. One-off goals
// occur once at their timing. Recurring goals occur every EveryYears between
// Start (default: the goal's timing) and End (default: death), inclusive,
// within ages 0 to the horizon. Sub-annual frequencies multiply the target
// by the periods in a year.
// A goal growth rate inflates each amount from asOf.
func GoalOccurrences(goal domain.Goal, profile domain.Profile, asOf time.Time) ([]GoalOccurrence, error) {
	current, err := CurrentAge(profile, asOf)
	if err != nil {
		return nil, err
	}

	first, err := ResolveTiming(goal.Timing, profile, asOf)
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", goal.ID, err)
	}

	amountAt := func(base decimal.Decimal, age int) decimal.Decimal {
		if goal.GrowthRate == nil {
			return base
		}
		return GrowAnnual(base, *goal.GrowthRate, age-current)
	}

	if goal.Recurrence == nil {
		return []GoalOccurrence{{GoalID: goal.ID, Age: first, Amount: amountAt(goal.TargetAmount, first)}}, nil
	}

	rec := goal.Recurrence
	start := first
	if rec.Start != nil {
		if start, err = ResolveTiming(*rec.Start, profile, asOf); err != nil {
			return nil, fmt.Errorf("goal %s recurrence start: %w", goal.ID, err)
		}
	}
	end := profile.Horizon()
	if rec.End != nil {
		if end, err = ResolveTiming(*rec.End, profile, asOf); err != nil {
			return nil, fmt.Errorf("goal %s recurrence end: %w", goal.ID, err)
		}
	}
	start = max(start, 0)
	end = min(end, profile.Horizon(), domain.MaxHorizon)
	every := rec.EveryYears
	if every <= 0 {
		every = 1
	}

	base := goal.TargetAmount
	if rec.Frequency != "" {
		// Unknown frequencies fall back to once per occurrence; callers report them.
		if f, ok := NormalizeFrequency(rec.Frequency); ok {
			base, _ = AnnualEquivalent(goal.TargetAmount, f)
		}
	}

	var out []GoalOccurrence
	for age := start; age <= end; age += every {
		out = append(out, GoalOccurrence{GoalID: goal.ID, Age: age, Amount: amountAt(base, age)})
	}
	return out, nil
}

// AccountSeries is one account's balance path, one entry per year starting at StartAge.
// MonthlyContributions and Withdrawals, when present, hold the flows of the year
// that ends at the same index and are replayed when the series is re-derived.
type AccountSeries struct {
	AccountID            string
	StartAge             int
	AnnualRate           decimal.Decimal
	Balances             []decimal.Decimal
	MonthlyContributions []decimal.Decimal
	Withdrawals          []decimal.Decimal
}

// NewAccountSeries projects an account forward for the given number of years
// with a constant monthly contribution.
func NewAccountSeries(accountID string, startAge int, start, annualRate, monthlyContribution decimal.Decimal, years int) AccountSeries {
	s := AccountSeries{
		AccountID:            accountID,
		StartAge:             startAge,
		AnnualRate:           annualRate,
		Balances:             make([]decimal.Decimal, years+1),
		MonthlyContributions: make([]decimal.Decimal, years+1),
		Withdrawals:          make([]decimal.Decimal, years+1),
	}
	s.Balances[0] = start
	for i := 1; i <= years; i++ {
		s.MonthlyContributions[i] = monthlyContribution
		s.Balances[i] = ProjectAccount(s.Balances[i-1], annualRate, monthlyContribution, 12)
	}
	return s
}

// BalanceAt returns the balance at an age, false when the age is outside the series.
func (s AccountSeries) BalanceAt(age int) (decimal.Decimal, bool) {
	i := age - s.StartAge
	if i < 0 || i >= len(s.Balances) {
		return decimal.Zero, false
	}
	return s.Balances[i], true
}

func (s AccountSeries) flowAt(flows []decimal.Decimal, i int) decimal.Decimal {
	if i < len(flows) {
		return flows[i]
	}
	return decimal.Zero
}

// ApplyGoalWithdrawal subtracts each occurrence of goal from the series at the
// occurrence's age, limited to the balance there, then re-derives every later
// point with ProjectAccount so growth compounds on the reduced base.
// Occurrences outside the series are ignored. The input series is not modified.
func ApplyGoalWithdrawal(series AccountSeries, goal domain.Goal, profile domain.Profile, asOf time.Time) (AccountSeries, []domain.GoalEvent, error) {
	occurrences, err := GoalOccurrences(goal, profile, asOf)
	if err != nil {
		return series, nil, err
	}
	current, _ := CurrentAge(profile, asOf)

	out := series
	out.Balances = append([]decimal.Decimal(nil), series.Balances...)
	out.Withdrawals = make([]decimal.Decimal, len(series.Balances))
	copy(out.Withdrawals, series.Withdrawals)

	var events []domain.GoalEvent
	for _, occ := range occurrences {
		idx := occ.Age - out.StartAge
		if idx < 0 || idx >= len(out.Balances) {
			continue
		}
		source := AccountBalance{ID: out.AccountID, Balance: out.Balances[idx]}
		alloc, ev := fundGoal(&goal, occ.Age, asOf.Year()+occ.Age-current, occ.Amount, &source, nil, nil)
		out.Balances[idx] = out.Balances[idx].Sub(alloc.Total)
		out.Withdrawals[idx] = out.Withdrawals[idx].Add(alloc.Total)
		events = append(events, ev)
		out.rederiveFrom(idx)
	}
	return out, events, nil
}

// fundGoal draws one goal occurrence and records it as an event. With a source
// the amount comes only from that account, up to its balance; otherwise policy
// spreads it over accounts. Whatever cannot be drawn is Unmet.
func fundGoal(goal *domain.Goal, age, year int, amount decimal.Decimal, source *AccountBalance, accounts []AccountBalance, policy WithdrawalPolicy) (Allocation, domain.GoalEvent) {
	var alloc Allocation
	if source != nil {
		alloc = newAllocation()
		if w := decimal.Min(amount, source.Balance); w.IsPositive() {
			alloc.Withdrawn[source.ID] = w
			alloc.Total = w
		}
		alloc.Shortfall = amount.Sub(alloc.Total)
	} else {
		alloc = Allocate(amount, accounts, policy)
	}
	return alloc, domain.GoalEvent{
		GoalID:    goal.ID,
		GoalName:  goal.Name,
		Age:       age,
		Year:      year,
		Amount:    amount,
		Withdrawn: alloc.Total,
		Unmet:     alloc.Shortfall,
		Sources:   alloc.Withdrawn,
	}
}

// rederiveFrom recomputes every balance after index idx from the one at idx.
func (s *AccountSeries) rederiveFrom(idx int) {
	for i := idx + 1; i < len(s.Balances); i++ {
		b := ProjectAccount(s.Balances[i-1], s.AnnualRate, s.flowAt(s.MonthlyContributions, i), 12)
		b = b.Sub(s.flowAt(s.Withdrawals, i))
		if b.IsNegative() {
			b = decimal.Zero
		}
		s.Balances[i] = b
	}
}
