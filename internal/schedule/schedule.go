// Package schedule turns a sale or purchase total into a dated installment
// plan and keeps that plan consistent under manual edits and total changes.
package schedule

import (
	"fmt"

	"ellas/internal/core"
)

// Cadence is the spacing between consecutive installments.
type Cadence string

const (
	Monthly     Cadence = "monthly"
	SemiMonthly Cadence = "semimonthly" // every 15 days
)

// Installment is one dated slice of a plan. Fixed marks a manually edited
// amount that redistribution must not touch.
type Installment struct {
	Index   int // 1-based
	Amount  core.Money
	DueDate core.Date
	PaidOn  *core.Date
	Fixed   bool
}

func (c Cadence) Valid() bool {
	return c == Monthly || c == SemiMonthly
}

// dueDate derives the due date for the 0-based slot i.
func (c Cadence) dueDate(first core.Date, i int) core.Date {
	if c == SemiMonthly {
		return first.AddDays(15 * i)
	}
	return first.AddMonths(i)
}

// Build splits total minus discount minus advance into count dated
// installments. The base amount is the half-up rounded division; the
// rounding remainder lands entirely on the last installment so earlier ones
// stay at a round, predictable figure.
//
// count < 1, negative inputs or discount+advance > total fail with
// core.ErrInvalidAllocation.
func Build(total, discount, advance core.Money, count int, firstDue core.Date, cadence Cadence) ([]Installment, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count %d", core.ErrInvalidAllocation, count)
	}
	if total.IsNegative() || discount.IsNegative() || advance.IsNegative() {
		return nil, fmt.Errorf("%w: negative input", core.ErrInvalidAllocation)
	}
	if discount.Cents+advance.Cents > total.Cents {
		return nil, fmt.Errorf("%w: discount+advance exceeds total", core.ErrInvalidAllocation)
	}
	if err := firstDue.Validate(); err != nil {
		return nil, err
	}
	if !cadence.Valid() {
		return nil, fmt.Errorf("%w: cadence %q", core.ErrInvalidAllocation, cadence)
	}

	net := total.Cents - discount.Cents - advance.Cents
	base := core.DivideCents(net, count)

	out := make([]Installment, count)
	for i := 0; i < count; i++ {
		out[i] = Installment{
			Index:   i + 1,
			Amount:  core.Money{Cents: base},
			DueDate: cadence.dueDate(firstDue, i),
		}
	}
	// Remainder absorbed by the last installment.
	out[count-1].Amount.Cents += net - base*int64(count)
	return out, nil
}

// Total sums the installment amounts.
func Total(plan []Installment) core.Money {
	var sum int64
	for _, in := range plan {
		sum += in.Amount.Cents
	}
	return core.Money{Cents: sum}
}

// Settled reports whether every installment has a paid-on date strictly
// before now. An empty plan is never settled.
func Settled(plan []Installment, now core.Date) bool {
	if len(plan) == 0 {
		return false
	}
	for _, in := range plan {
		if in.PaidOn == nil || !in.PaidOn.Before(now.Time) {
			return false
		}
	}
	return true
}

// Remaining counts installments that are unpaid or whose paid-on date is
// still in the future.
func Remaining(plan []Installment, now core.Date) int {
	n := 0
	for _, in := range plan {
		if in.PaidOn == nil || !in.PaidOn.Before(now.Time) {
			n++
		}
	}
	return n
}

// NextUnsettled returns the first installment, in index order, that is not
// yet settled. ok is false when the whole plan is settled or empty.
func NextUnsettled(plan []Installment, now core.Date) (Installment, bool) {
	for _, in := range plan {
		if in.PaidOn == nil || !in.PaidOn.Before(now.Time) {
			return in, true
		}
	}
	return Installment{}, false
}
