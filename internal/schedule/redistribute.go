// This file implements the Strategy Pattern for installment redistribution.
// When a user hand-tunes one installment, the remaining value has to be
// spread over the untouched slots; which slots are eligible is a named,
// tested policy rather than an accident of iteration order.

package schedule

import (
	"fmt"

	"ellas/internal/core"
)

// Policy selects which unfixed slots absorb the remaining value after the
// slot at editedIndex (0-based, -1 for a total change) was fixed.
type Policy interface {
	// EligibleSlots returns the 0-based indices, in position order, that a
	// redistribution may rewrite.
	EligibleSlots(plan []Installment, editedIndex int) []int
}

// ForwardOnly rewrites only unfixed slots after the edited index. Unfixed
// slots before it keep their amounts, so the plan total is only approximate
// when such slots exist. This mirrors how the business hand-tunes plans:
// earlier installments are already agreed with the customer.
type ForwardOnly struct{}

func (ForwardOnly) EligibleSlots(plan []Installment, editedIndex int) []int {
	var out []int
	for i := editedIndex + 1; i < len(plan); i++ {
		if !plan[i].Fixed {
			out = append(out, i)
		}
	}
	return out
}

// AllUnfixed rewrites every unfixed slot regardless of position. Each slot
// gets the same half-up share, so the plan total is approximate when the
// remainder does not divide evenly.
type AllUnfixed struct{}

func (AllUnfixed) EligibleSlots(plan []Installment, editedIndex int) []int {
	var out []int
	for i := range plan {
		if i != editedIndex && !plan[i].Fixed {
			out = append(out, i)
		}
	}
	return out
}

// policies maps policy names to their implementations.
var policies = map[string]Policy{
	"forward-only": ForwardOnly{},
	"all-unfixed":  AllUnfixed{},
}

// GetPolicy returns the redistribution policy registered under name.
func GetPolicy(name string) (Policy, error) {
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown redistribution policy: %s", name)
	}
	return p, nil
}

// RegisterPolicy registers a custom policy under name.
func RegisterPolicy(name string, p Policy) {
	policies[name] = p
}

// Override returns a copy of plan with the 0-based slot index fixed at
// newAmount and the remaining value spread over the policy's eligible
// slots. The share per slot is the remaining value divided by the total
// number of unfixed slots, rounded half-up to a cent.
//
// When the remaining value is not positive the eligible slots are clamped
// to zero; Build already rejects over-discounted plans, but a manual
// override larger than the net total can still drive the remainder
// negative.
func Override(plan []Installment, index int, newAmount core.Money, netTotal core.Money, policy Policy) ([]Installment, error) {
	if index < 0 || index >= len(plan) {
		return nil, fmt.Errorf("%w: index %d out of range", core.ErrInvalidAllocation, index)
	}
	if newAmount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount", core.ErrInvalidAllocation)
	}

	out := make([]Installment, len(plan))
	copy(out, plan)
	out[index].Amount = newAmount
	out[index].Fixed = true

	redistribute(out, index, netTotal, policy)
	return out, nil
}

// Recompute re-spreads the plan after the underlying total changed (a line
// item added, removed or edited). Fixed slots keep their amounts; the
// unfixed remainder is spread across unfixed slots in position order.
func Recompute(plan []Installment, netTotal core.Money, policy Policy) []Installment {
	out := make([]Installment, len(plan))
	copy(out, plan)
	redistribute(out, -1, netTotal, policy)
	return out
}

func redistribute(plan []Installment, editedIndex int, netTotal core.Money, policy Policy) {
	var committed int64
	unfixed := 0
	for i := range plan {
		if plan[i].Fixed {
			committed += plan[i].Amount.Cents
		} else {
			unfixed++
		}
	}
	if unfixed == 0 {
		return
	}

	eligible := policy.EligibleSlots(plan, editedIndex)
	if len(eligible) == 0 {
		return
	}

	remaining := netTotal.Cents - committed
	if remaining <= 0 {
		for _, i := range eligible {
			plan[i].Amount = core.Money{}
		}
		return
	}

	share := core.DivideCents(remaining, unfixed)
	for _, i := range eligible {
		plan[i].Amount = core.Money{Cents: share}
	}
}
