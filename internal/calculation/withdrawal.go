package calculation

import (
	"fmt"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountBalance is an account's balance at the moment of a withdrawal.
type AccountBalance struct {
	ID      string
	Balance decimal.Decimal
}

// Allocation is the outcome of drawing a need from a set of accounts.
// Total never exceeds the need; Shortfall is the part that could not be funded.
type Allocation struct {
	Withdrawn map[string]decimal.Decimal
	Total     decimal.Decimal
	Shortfall decimal.Decimal
}

// WithdrawalPolicy decides which accounts fund a need.
type WithdrawalPolicy interface {
	Allocate(need decimal.Decimal, accounts []AccountBalance) Allocation
	Name() string
}

// Allocate draws need from accounts according to policy. A non-positive
// need yields an empty allocation.
func Allocate(need decimal.Decimal, accounts []AccountBalance, policy WithdrawalPolicy) Allocation {
	return policy.Allocate(need, accounts)
}

func newAllocation() Allocation {
	return Allocation{Withdrawn: make(map[string]decimal.Decimal)}
}

// OrderedPolicy drains accounts in Order, each fully before the next.
// Accounts missing from Order are handled according to Unlisted.
type OrderedPolicy struct {
	Order    []string
	Unlisted string
}

// NewOrderedPolicy creates an OrderedPolicy. An empty unlisted mode means
// unlisted accounts are drawn proportionally once listed ones are exhausted.
func NewOrderedPolicy(order []string, unlisted string) *OrderedPolicy {
	if unlisted == "" {
		unlisted = domain.UnlistedProportional
	}
	return &OrderedPolicy{Order: order, Unlisted: unlisted}
}

// Name returns the name of this policy
func (op *OrderedPolicy) Name() string {
	return domain.PolicyOrdered
}

// Allocate walks the order, withdrawing min(remaining, balance) from each account.
func (op *OrderedPolicy) Allocate(need decimal.Decimal, accounts []AccountBalance) Allocation {
	alloc := newAllocation()
	if !need.IsPositive() {
		return alloc
	}

	byID := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a.Balance
	}

	remaining := need
	listed := make(map[string]bool, len(op.Order))
	for _, id := range op.Order {
		if listed[id] {
			continue
		}
		listed[id] = true
		if !remaining.IsPositive() {
			continue
		}
		balance, ok := byID[id]
		if !ok || !balance.IsPositive() {
			continue
		}
		w := decimal.Min(remaining, balance)
		alloc.Withdrawn[id] = w
		alloc.Total = alloc.Total.Add(w)
		remaining = remaining.Sub(w)
	}

	if remaining.IsPositive() && op.Unlisted == domain.UnlistedProportional {
		var rest []AccountBalance
		for _, a := range accounts {
			if !listed[a.ID] {
				rest = append(rest, a)
			}
		}
		if len(rest) > 0 {
			sub := ProportionalPolicy{}.Allocate(remaining, rest)
			for id, w := range sub.Withdrawn {
				alloc.Withdrawn[id] = w
			}
			alloc.Total = alloc.Total.Add(sub.Total)
			remaining = sub.Shortfall
		}
	}

	alloc.Shortfall = remaining
	return alloc
}

// ProportionalPolicy draws from every account in proportion to its share of
// the total balance.
type ProportionalPolicy struct{}

// Name returns the name of this policy
func (ProportionalPolicy) Name() string {
	return domain.PolicyProportional
}

// Allocate gives each account need * balance/total. Rounding remainders are
// swept onto accounts with spare balance so the total is exact.
func (ProportionalPolicy) Allocate(need decimal.Decimal, accounts []AccountBalance) Allocation {
	alloc := newAllocation()
	if !need.IsPositive() {
		return alloc
	}

	total := decimal.Zero
	var funded []AccountBalance
	for _, a := range accounts {
		if a.Balance.IsPositive() {
			funded = append(funded, a)
			total = total.Add(a.Balance)
		}
	}
	if len(funded) == 0 {
		alloc.Shortfall = need
		return alloc
	}

	if total.LessThanOrEqual(need) {
		for _, a := range funded {
			alloc.Withdrawn[a.ID] = a.Balance
		}
		alloc.Total = total
		alloc.Shortfall = need.Sub(total)
		return alloc
	}

	for _, a := range funded {
		w := decimal.Min(need.Mul(a.Balance).Div(total).Round(balancePlaces), a.Balance)
		alloc.Withdrawn[a.ID] = w
		alloc.Total = alloc.Total.Add(w)
	}

	// Sweep the rounding remainder, positive or negative, from the last funded account back.
	remaining := need.Sub(alloc.Total)
	for i := len(funded) - 1; i >= 0 && !remaining.IsZero(); i-- {
		a := funded[i]
		w := alloc.Withdrawn[a.ID]
		adjusted := w.Add(remaining)
		switch {
		case adjusted.GreaterThan(a.Balance):
			adjusted = a.Balance
		case adjusted.IsNegative():
			adjusted = decimal.Zero
		}
		remaining = remaining.Sub(adjusted.Sub(w))
		alloc.Withdrawn[a.ID] = adjusted
	}
	alloc.Total = need.Sub(remaining)
	return alloc
}

// PolicyFor builds the policy named in settings. The ordered policy falls
// back to the retirement goal's withdrawal order when settings carry none,
// and to the proportional policy when neither supplies an order.
func PolicyFor(settings domain.WithdrawalSettings, goals []domain.Goal) (WithdrawalPolicy, error) {
	switch settings.Policy {
	case domain.PolicyProportional:
		return ProportionalPolicy{}, nil
	case domain.PolicyOrdered:
		order := settings.Order
		if len(order) == 0 {
			for _, g := range goals {
				if g.IsRetirement() && len(g.WithdrawalOrder) > 0 {
					order = g.WithdrawalOrder
					break
				}
			}
		}
		if len(order) == 0 {
			return ProportionalPolicy{}, nil
		}
		switch settings.Unlisted {
		case "", domain.UnlistedProportional, domain.UnlistedExcluded:
		default:
			return nil, fmt.Errorf("%w: unknown unlisted-account mode %q", ErrInvalidInput, settings.Unlisted)
		}
		return NewOrderedPolicy(order, settings.Unlisted), nil
	case "":
		return nil, fmt.Errorf("%w: withdrawal policy must be chosen (%s or %s)", ErrInvalidInput, domain.PolicyOrdered, domain.PolicyProportional)
	default:
		return nil, fmt.Errorf("%w: unknown withdrawal policy %q", ErrInvalidInput, settings.Policy)
	}
}
