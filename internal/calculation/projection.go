package calculation

import (
	"errors"
	"fmt"
	"time"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks structural problems that keep a projection from running.
// Data-quality problems never produce it; they are reported as anomalies.
var ErrInvalidInput = errors.New("invalid projection input")

// DefaultInflationRate applies to expenses without their own growth rate.
var DefaultInflationRate = decimal.NewFromFloat(0.03)

// ProjectionInput is the immutable snapshot a projection runs on.
type ProjectionInput struct {
	Name          string                    `json:"name"`
	AsOf          time.Time                 `json:"as_of"`
	Profile       domain.Profile            `json:"profile"`
	InflationRate *decimal.Decimal          `json:"inflation_rate,omitempty"`
	Withdrawal    domain.WithdrawalSettings `json:"withdrawal"`
	Accounts      []domain.Account          `json:"accounts"`
	Contributions []domain.Contribution     `json:"contributions,omitempty"`
	Expenses      []domain.Expense          `json:"expenses,omitempty"`
	Incomes       []domain.Income           `json:"incomes,omitempty"`
	Goals         []domain.Goal             `json:"goals,omitempty"`
}

// NewProjectionInput builds an input from a plan. A plan-level as-of date wins over asOf.
func NewProjectionInput(plan domain.Plan, asOf time.Time) *ProjectionInput {
	if plan.AsOf != nil {
		asOf = *plan.AsOf
	}
	return &ProjectionInput{
		Name:          plan.Name,
		AsOf:          asOf,
		Profile:       plan.Profile,
		InflationRate: plan.InflationRate,
		Withdrawal:    plan.Withdrawal,
		Accounts:      plan.Accounts,
		Contributions: plan.Contributions,
		Expenses:      plan.Expenses,
		Incomes:       plan.Incomes,
		Goals:         plan.Goals,
	}
}

type accountState struct {
	id       string
	rate     decimal.Decimal
	balance  decimal.Decimal
	directed decimal.Decimal // monthly
}

// flow is an expense or income converted to an annual amount.
// Incomes are active for ages in [start, end).
type flow struct {
	id     string
	annual decimal.Decimal
	growth decimal.Decimal
	start  int
	end    int
}

type scheduledGoal struct {
	goal   *domain.Goal
	source *accountState
	amount decimal.Decimal
}

// simulation holds the mutable state of one run. It is never shared.
type simulation struct {
	in     *ProjectionInput
	logger Logger
	policy WithdrawalPolicy

	currentAge    int
	retirementAge int
	horizon       int

	accounts   []*accountState
	index      map[string]*accountState
	undirected decimal.Decimal // monthly
	expenses   []flow
	incomes    []flow
	goals      map[int][]scheduledGoal
	retirement *domain.Goal

	anomalies  []domain.Anomaly
	shortfalls []domain.Shortfall
	events     []domain.GoalEvent
	failureAge *int
}

func (s *simulation) anomaly(kind, recordID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.anomalies = append(s.anomalies, domain.Anomaly{Kind: kind, RecordID: recordID, Message: msg})
	s.logger.Warnf("projection %q: %s (%s)", s.in.Name, msg, kind)
}

func newSimulation(in *ProjectionInput, logger Logger) (*simulation, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil input", ErrInvalidInput)
	}
	if in.AsOf.IsZero() {
		return nil, fmt.Errorf("%w: as-of date is required", ErrInvalidInput)
	}

	currentAge, err := CurrentAge(in.Profile, in.AsOf)
	if err != nil {
		return nil, err
	}
	horizon := in.Profile.Horizon()
	switch {
	case currentAge < 0:
		return nil, fmt.Errorf("%w: current age %d is negative", ErrInvalidInput, currentAge)
	case horizon > domain.MaxHorizon:
		return nil, fmt.Errorf("%w: death age %d exceeds %d", ErrInvalidInput, horizon, domain.MaxHorizon)
	case in.Profile.RetirementAge <= 0:
		return nil, fmt.Errorf("%w: retirement age is required", ErrInvalidInput)
	case in.Profile.RetirementAge > horizon:
		return nil, fmt.Errorf("%w: retirement age %d is after death age %d", ErrInvalidInput, in.Profile.RetirementAge, horizon)
	case currentAge > horizon:
		return nil, fmt.Errorf("%w: current age %d is after death age %d", ErrInvalidInput, currentAge, horizon)
	}

	policy, err := PolicyFor(in.Withdrawal, in.Goals)
	if err != nil {
		return nil, err
	}

	s := &simulation{
		in:            in,
		logger:        logger,
		policy:        policy,
		currentAge:    currentAge,
		retirementAge: in.Profile.RetirementAge,
		horizon:       horizon,
		index:         make(map[string]*accountState, len(in.Accounts)),
		goals:         make(map[int][]scheduledGoal),
	}

	if err := s.loadAccounts(); err != nil {
		return nil, err
	}
	s.checkOrder()
	s.loadContributions()
	s.loadExpenses()
	s.loadIncomes()
	s.scheduleGoals()
	return s, nil
}

func (s *simulation) loadAccounts() error {
	for _, a := range s.in.Accounts {
		if a.ID == "" {
			return fmt.Errorf("%w: account %q has no id", ErrInvalidInput, a.Name)
		}
		if _, dup := s.index[a.ID]; dup {
			return fmt.Errorf("%w: duplicate account id %q", ErrInvalidInput, a.ID)
		}
		st := &accountState{id: a.ID, balance: a.Balance}
		if a.Balance.IsNegative() {
			s.anomaly(domain.AnomalyNegativeBalance, a.ID, "balance %s coerced to zero", a.Balance.StringFixed(2))
			st.balance = decimal.Zero
		}
		if a.GrowthRate != nil {
			st.rate = *a.GrowthRate
		}
		s.accounts = append(s.accounts, st)
		s.index[a.ID] = st
	}
	return nil
}

// checkOrder reports order entries that match no account and accounts the order leaves out.
func (s *simulation) checkOrder() {
	op, ok := s.policy.(*OrderedPolicy)
	if !ok {
		if s.in.Withdrawal.Policy == domain.PolicyOrdered {
			s.anomaly(domain.AnomalyEmptyOrder, "", "ordered policy without a withdrawal order; accounts drawn proportionally")
		}
		return
	}
	listed := make(map[string]bool, len(op.Order))
	for _, id := range op.Order {
		listed[id] = true
		if _, known := s.index[id]; !known {
			s.anomaly(domain.AnomalyUnknownAccount, id, "withdrawal order names unknown account; skipped")
		}
	}
	for _, a := range s.accounts {
		if listed[a.id] {
			continue
		}
		if op.Unlisted == domain.UnlistedExcluded {
			s.anomaly(domain.AnomalyUnlistedAccount, a.id, "account not in withdrawal order; never drawn for retirement needs")
		} else {
			s.anomaly(domain.AnomalyUnlistedAccount, a.id, "account not in withdrawal order; drawn proportionally after listed accounts")
		}
	}
}

// amount coerces a negative record amount to zero.
func (s *simulation) amount(id string, v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		s.anomaly(domain.AnomalyInvalidAmount, id, "negative amount %s coerced to zero", v.StringFixed(2))
		return decimal.Zero
	}
	return v
}

func (s *simulation) loadContributions() {
	for _, c := range s.in.Contributions {
		monthly, ok := MonthlyEquivalent(s.amount(c.ID, c.Amount), c.Frequency)
		if !ok {
			s.anomaly(domain.AnomalyUnknownFrequency, c.ID, "frequency %q treated as monthly", c.Frequency)
		}
		if len(s.accounts) == 0 {
			s.anomaly(domain.AnomalyUnknownAccount, c.ID, "contribution has no account to go to; ignored")
			continue
		}
		if c.AccountID != nil {
			if st, found := s.index[*c.AccountID]; found {
				st.directed = st.directed.Add(monthly)
				continue
			}
			s.anomaly(domain.AnomalyUnknownAccount, c.ID, "account %q not found; contribution treated as undirected", *c.AccountID)
		}
		s.undirected = s.undirected.Add(monthly)
	}
}

func (s *simulation) loadExpenses() {
	inflation := DefaultInflationRate
	if s.in.InflationRate != nil {
		inflation = *s.in.InflationRate
	}
	for _, e := range s.in.Expenses {
		annual, ok := AnnualEquivalent(s.amount(e.ID, e.Amount), e.Frequency)
		if !ok {
			s.anomaly(domain.AnomalyUnknownFrequency, e.ID, "frequency %q treated as monthly", e.Frequency)
		}
		growth := inflation
		if e.GrowthRate != nil {
			growth = *e.GrowthRate
		}
		s.expenses = append(s.expenses, flow{id: e.ID, annual: annual, growth: growth})
	}
}

func (s *simulation) loadIncomes() {
	for _, inc := range s.in.Incomes {
		annual, ok := AnnualEquivalent(s.amount(inc.ID, inc.Amount), inc.Frequency)
		if !ok {
			s.anomaly(domain.AnomalyUnknownFrequency, inc.ID, "frequency %q treated as monthly", inc.Frequency)
		}
		f := flow{id: inc.ID, annual: annual, start: s.currentAge, end: s.retirementAge}
		if inc.GrowthRate != nil {
			f.growth = *inc.GrowthRate
		}
		if inc.StartAge != nil {
			f.start = *inc.StartAge
		}
		if inc.EndAge != nil {
			f.end = *inc.EndAge
		} else if inc.StartAge != nil && *inc.StartAge >= s.retirementAge {
			// A post-retirement income with no end runs for life.
			f.end = s.horizon + 1
		}
		s.incomes = append(s.incomes, f)
	}
}

func (s *simulation) scheduleGoals() {
	for i := range s.in.Goals {
		g := &s.in.Goals[i]
		if g.IsRetirement() {
			if s.retirement == nil {
				s.retirement = g
			}
			continue
		}

		occurrences, err := GoalOccurrences(*g, s.in.Profile, s.in.AsOf)
		if err != nil {
			s.anomaly(domain.AnomalyUnresolvableTiming, g.ID, "goal skipped: %v", err)
			continue
		}
		if g.Recurrence != nil && g.Recurrence.Frequency != "" {
			if _, ok := NormalizeFrequency(g.Recurrence.Frequency); !ok {
				s.anomaly(domain.AnomalyUnknownFrequency, g.ID, "recurrence frequency %q treated as once per occurrence", g.Recurrence.Frequency)
			}
		}

		var source *accountState
		if g.SourceAccountID != nil {
			if st, found := s.index[*g.SourceAccountID]; found {
				source = st
			} else {
				s.anomaly(domain.AnomalyUnknownAccount, g.ID, "source account %q not found; using %s policy", *g.SourceAccountID, s.policy.Name())
			}
		}

		skipped := 0
		for _, occ := range occurrences {
			if occ.Age <= s.currentAge || occ.Age > s.horizon {
				skipped++
				continue
			}
			s.goals[occ.Age] = append(s.goals[occ.Age], scheduledGoal{goal: g, source: source, amount: s.amount(g.ID, occ.Amount)})
		}
		if skipped > 0 {
			s.anomaly(domain.AnomalyGoalOutOfRange, g.ID, "%d occurrence(s) outside ages %d-%d skipped", skipped, s.currentAge+1, s.horizon)
		}
	}
}

func (s *simulation) balances() []AccountBalance {
	out := make([]AccountBalance, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = AccountBalance{ID: a.id, Balance: a.balance}
	}
	return out
}

func (s *simulation) debit(withdrawn map[string]decimal.Decimal) {
	for id, w := range withdrawn {
		st := s.index[id]
		st.balance = st.balance.Sub(w)
		if st.balance.IsNegative() {
			st.balance = decimal.Zero
		}
	}
}

func (s *simulation) expensesFor(yearIndex int) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.expenses {
		total = total.Add(GrowAnnual(e.annual, e.growth, yearIndex))
	}
	return total
}

func (s *simulation) incomeFor(age, yearIndex int) decimal.Decimal {
	total := decimal.Zero
	for _, inc := range s.incomes {
		if age >= inc.start && age < inc.end {
			total = total.Add(GrowAnnual(inc.annual, inc.growth, yearIndex))
		}
	}
	return total
}

// monthlyContributions returns each account's monthly contribution for the
// coming year. Undirected money follows start-of-year balances, or is split
// evenly when every account is empty.
func (s *simulation) monthlyContributions() ([]decimal.Decimal, decimal.Decimal) {
	out := make([]decimal.Decimal, len(s.accounts))
	total := s.undirected
	if len(s.accounts) == 0 {
		return out, decimal.Zero
	}

	sum := decimal.Zero
	for _, a := range s.accounts {
		sum = sum.Add(a.balance)
	}
	for i, a := range s.accounts {
		share := decimal.Zero
		if s.undirected.IsPositive() {
			if sum.IsPositive() {
				share = s.undirected.Mul(a.balance).Div(sum)
			} else {
				share = s.undirected.Div(decimal.NewFromInt(int64(len(s.accounts))))
			}
		}
		out[i] = a.directed.Add(share)
		total = total.Add(a.directed)
	}
	return out, total
}

func (s *simulation) phaseAt(age int) domain.Phase {
	if age < s.retirementAge {
		return domain.PhaseAccumulating
	}
	return domain.PhaseDecumulating
}

// openingPoint reports current balances and flows at today's annual rates.
func (s *simulation) openingPoint() domain.ProjectionPoint {
	pt := domain.ProjectionPoint{
		Age:      s.currentAge,
		Year:     s.in.AsOf.Year(),
		Phase:    s.phaseAt(s.currentAge),
		Income:   s.incomeFor(s.currentAge, 0),
		Expenses: s.expensesFor(0),
	}
	if pt.Phase == domain.PhaseAccumulating {
		_, monthly := s.monthlyContributions()
		pt.Contributions = monthly.Mul(twelve)
	}
	s.close(&pt)
	return pt
}

// step advances every account through the year that starts at age.
func (s *simulation) step(age int) domain.ProjectionPoint {
	yearIndex := age - s.currentAge
	pt := domain.ProjectionPoint{
		Age:       age + 1,
		Year:      s.in.AsOf.Year() + yearIndex + 1,
		Phase:     s.phaseAt(age),
		Income:    s.incomeFor(age, yearIndex),
		Expenses:  s.expensesFor(yearIndex),
		Withdrawn: make(map[string]decimal.Decimal),
	}

	if pt.Phase == domain.PhaseAccumulating {
		perAccount, monthly := s.monthlyContributions()
		for i, a := range s.accounts {
			a.balance = ProjectAccount(a.balance, a.rate, perAccount[i], 12)
		}
		pt.Contributions = monthly.Mul(twelve)
	} else {
		if age == s.retirementAge {
			s.logger.Debugf("projection %q: decumulation starts at age %d", s.in.Name, age)
		}
		for _, a := range s.accounts {
			a.balance = ProjectAccount(a.balance, a.rate, decimal.Zero, 12)
		}
		need := decimal.Max(pt.Expenses.Sub(pt.Income), decimal.Zero)
		alloc := Allocate(need, s.balances(), s.policy)
		s.debit(alloc.Withdrawn)
		for id, w := range alloc.Withdrawn {
			pt.Withdrawn[id] = w
		}
		pt.Withdrawals = alloc.Total
		if alloc.Shortfall.IsPositive() {
			pt.Shortfall = alloc.Shortfall
			s.shortfalls = append(s.shortfalls, domain.Shortfall{
				Age: pt.Age, Year: pt.Year, Need: need, Funded: alloc.Total, Unmet: alloc.Shortfall,
			})
			if s.failureAge == nil {
				failed := pt.Age
				s.failureAge = &failed
				s.logger.Warnf("projection %q: plan fails at age %d, short %s", s.in.Name, failed, alloc.Shortfall.StringFixed(2))
			}
		}
	}

	s.applyGoals(&pt)
	s.close(&pt)
	return pt
}

// applyGoals withdraws every goal occurrence scheduled at the point's age.
func (s *simulation) applyGoals(pt *domain.ProjectionPoint) {
	for _, sg := range s.goals[pt.Age] {
		var (
			source   *AccountBalance
			accounts []AccountBalance
		)
		if sg.source != nil {
			source = &AccountBalance{ID: sg.source.id, Balance: sg.source.balance}
		} else {
			accounts = s.balances()
		}
		alloc, ev := fundGoal(sg.goal, pt.Age, pt.Year, sg.amount, source, accounts, s.policy)
		s.debit(alloc.Withdrawn)
		pt.GoalWithdrawals = pt.GoalWithdrawals.Add(alloc.Total)
		s.events = append(s.events, ev)
		if alloc.Shortfall.IsPositive() {
			s.logger.Debugf("projection %q: goal %s at age %d unmet by %s", s.in.Name, sg.goal.ID, pt.Age, alloc.Shortfall.StringFixed(2))
		}
	}
}

// close snapshots balances into the point and derives the aggregate figures.
func (s *simulation) close(pt *domain.ProjectionPoint) {
	pt.Balances = make(map[string]decimal.Decimal, len(s.accounts))
	total := decimal.Zero
	for _, a := range s.accounts {
		pt.Balances[a.id] = a.balance
		total = total.Add(a.balance)
	}
	pt.PortfolioValue = total
	pt.NetWorth = total
	pt.CashFlow = pt.Income.Sub(pt.Expenses).Sub(pt.Contributions).Add(pt.Withdrawals)
}

func (s *simulation) run() *domain.ProjectionResult {
	points := make([]domain.ProjectionPoint, 0, s.horizon-s.currentAge+1)
	points = append(points, s.openingPoint())
	for age := s.currentAge; age < s.horizon; age++ {
		points = append(points, s.step(age))
	}

	ids := make([]string, len(s.accounts))
	for i, a := range s.accounts {
		ids[i] = a.id
	}

	result := &domain.ProjectionResult{
		Name:          s.in.Name,
		AsOf:          s.in.AsOf,
		Policy:        s.policy.Name(),
		CurrentAge:    s.currentAge,
		RetirementAge: s.retirementAge,
		Horizon:       s.horizon,
		AccountIDs:    ids,
		Points:        points,
		FailureAge:    s.failureAge,
		Shortfalls:    s.shortfalls,
		GoalEvents:    s.events,
		Anomalies:     s.anomalies,
	}

	if s.retirement != nil {
		at := s.retirementAge
		if at < s.currentAge {
			at = s.currentAge
		}
		if pt, ok := result.PointAt(at); ok {
			funded := pt.PortfolioValue.GreaterThanOrEqual(s.retirement.TargetAmount)
			result.RetirementGoalFunded = &funded
		}
	}

	result.Summary = Summarize(result)
	return result
}

// Summarize derives headline figures from a result's points.
func Summarize(r *domain.ProjectionResult) domain.Summary {
	var sum domain.Summary
	if len(r.Points) == 0 {
		return sum
	}

	first := r.Points[0]
	sum.StartingPortfolio = first.PortfolioValue
	sum.PortfolioAtRetirement = first.PortfolioValue
	sum.FinalPortfolio = r.Points[len(r.Points)-1].PortfolioValue
	sum.PeakPortfolio = first.PortfolioValue
	sum.PeakAge = first.Age

	for i, p := range r.Points {
		if p.Age == r.RetirementAge {
			sum.PortfolioAtRetirement = p.PortfolioValue
		}
		if p.PortfolioValue.GreaterThan(sum.PeakPortfolio) {
			sum.PeakPortfolio = p.PortfolioValue
			sum.PeakAge = p.Age
		}
		if i == 0 {
			continue
		}
		if sum.DepletionAge == nil && !p.PortfolioValue.IsPositive() && r.Points[i-1].PortfolioValue.IsPositive() {
			age := p.Age
			sum.DepletionAge = &age
		}
		sum.TotalContributions = sum.TotalContributions.Add(p.Contributions)
		sum.TotalWithdrawals = sum.TotalWithdrawals.Add(p.Withdrawals)
		sum.TotalGoalWithdrawals = sum.TotalGoalWithdrawals.Add(p.GoalWithdrawals)
		sum.TotalShortfall = sum.TotalShortfall.Add(p.Shortfall)
		if p.Phase == domain.PhaseDecumulating && !p.HasShortfall() {
			sum.YearsFunded++
		}
	}
	return sum
}
