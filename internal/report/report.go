// Package report buckets sales and payable expenses into calendar months
// and computes totals, profit and settlement status per bucket. All
// functions are pure and never panic on empty input.
package report

import (
	"fmt"
	"sort"

	"ellas/internal/core"
	"ellas/internal/schedule"
)

// planOf adapts a sale's persisted installments to a schedule plan.
func planOf(s core.Sale) []schedule.Installment {
	plan := make([]schedule.Installment, len(s.Installments))
	for i, in := range s.Installments {
		plan[i] = schedule.Installment{
			Index:   in.Index,
			Amount:  in.Amount,
			DueDate: in.DueDate,
			PaidOn:  in.PaidOn,
		}
	}
	return plan
}

// AmountForPeriod returns the receivable amount a sale contributes to the
// given period key. For a PIX sale that is the full net amount when the
// payment date falls in the period, else zero. For an installment sale with
// the all-periods sentinel it is the next unsettled installment's amount
// (the last one when fully settled); for a specific period it is the sum of
// every installment due in that period, since a semi-monthly cadence can
// place two installments in one month.
func AmountForPeriod(s core.Sale, periodKey string, now core.Date) (core.Money, error) {
	if s.PaymentMethod == core.PaymentPix {
		net := s.SaleTotal().Sub(s.Discount)
		if periodKey == core.PeriodAll {
			return net, nil
		}
		p, err := core.ParsePeriod(periodKey)
		if err != nil {
			return core.Money{}, err
		}
		if p.Contains(s.PaymentDate) {
			return net, nil
		}
		return core.Money{}, nil
	}

	plan := planOf(s)
	if periodKey == core.PeriodAll {
		if len(plan) == 0 {
			return core.Money{}, nil
		}
		if next, ok := schedule.NextUnsettled(plan, now); ok {
			return next.Amount, nil
		}
		return plan[len(plan)-1].Amount, nil
	}

	p, err := core.ParsePeriod(periodKey)
	if err != nil {
		return core.Money{}, err
	}
	var sum int64
	for _, in := range plan {
		if p.Contains(in.DueDate) {
			sum += in.Amount.Cents
		}
	}
	return core.Money{Cents: sum}, nil
}

// ProfitForPeriod returns the profit a sale contributes to the given
// period. For the all-periods sentinel it is the plain sale minus purchase
// minus discount. For a specific period, purchase cost and discount are
// allocated proportionally to the revenue recognized in that period; a sale
// with zero total sale value yields zero profit for any period.
func ProfitForPeriod(s core.Sale, periodKey string, now core.Date) (core.Money, error) {
	if periodKey == core.PeriodAll {
		return s.Profit(), nil
	}
	total := s.SaleTotal()
	if total.Cents == 0 {
		if _, err := core.ParsePeriod(periodKey); err != nil {
			return core.Money{}, err
		}
		return core.Money{}, nil
	}

	if s.PaymentMethod == core.PaymentPix {
		p, err := core.ParsePeriod(periodKey)
		if err != nil {
			return core.Money{}, err
		}
		if p.Contains(s.PaymentDate) {
			return s.Profit(), nil
		}
		return core.Money{}, nil
	}

	inPeriod, err := AmountForPeriod(s, periodKey, now)
	if err != nil {
		return core.Money{}, err
	}
	cost := core.AllocateShare(s.PurchaseTotal().Cents, inPeriod.Cents, total.Cents)
	discount := core.AllocateShare(s.Discount.Cents, inPeriod.Cents, total.Cents)
	return core.Money{Cents: inPeriod.Cents - cost - discount}, nil
}

// ExpenseAmountForPeriod sums the rows of one expense group that fall in
// the period. Rows carry their period label; rows without one fall back to
// the month of their own date.
func ExpenseAmountForPeriod(group []core.Expense, periodKey string) (core.Money, error) {
	var sum int64
	if periodKey == core.PeriodAll {
		for _, e := range group {
			sum += e.Amount.Cents
		}
		return core.Money{Cents: sum}, nil
	}
	p, err := core.ParsePeriod(periodKey)
	if err != nil {
		return core.Money{}, err
	}
	for _, e := range group {
		rp, err := expensePeriod(e)
		if err != nil {
			return core.Money{}, err
		}
		if rp == p {
			sum += e.Amount.Cents
		}
	}
	return core.Money{Cents: sum}, nil
}

func expensePeriod(e core.Expense) (core.Period, error) {
	if e.Period == "" {
		return core.PeriodOf(e.Date), nil
	}
	return core.ParsePeriod(e.Period)
}

// IsFullySettled reports whether every installment of a sale has a paid-on
// date strictly before now. Single-payment sales are never "settled" in the
// installment sense.
func IsFullySettled(s core.Sale, now core.Date) bool {
	if s.PaymentMethod != core.PaymentInstallment {
		return false
	}
	return schedule.Settled(planOf(s), now)
}

// ExpenseGroupSettled reports whether every row of a parcelado group is
// paid. A single PIX row follows the same rule as single-payment sales.
func ExpenseGroupSettled(group []core.Expense, now core.Date) bool {
	if len(group) == 0 {
		return false
	}
	if len(group) == 1 && group[0].PaymentMethod == core.ExpensePix {
		return false
	}
	for _, e := range group {
		if e.PaidOn == nil || !e.PaidOn.Before(now.Time) {
			return false
		}
	}
	return true
}

// sortKey holds the precomputed ordering keys shared by sales and expense
// group sorting: settled entries last, more remaining installments first,
// then most recent relevant date first.
type sortKey struct {
	settled   bool
	hasPlan   bool
	remaining int
	latest    core.Date
}

func (a sortKey) less(b sortKey) bool {
	if a.settled != b.settled {
		return !a.settled
	}
	if a.hasPlan && b.hasPlan && a.remaining != b.remaining {
		return a.remaining > b.remaining
	}
	return a.latest.After(b.latest.Time)
}

func saleKey(s core.Sale, now core.Date) sortKey {
	k := sortKey{
		settled: IsFullySettled(s, now),
		hasPlan: s.PaymentMethod == core.PaymentInstallment && len(s.Installments) > 0,
		latest:  s.PaymentDate,
	}
	if k.hasPlan {
		k.remaining = schedule.Remaining(planOf(s), now)
		for _, in := range s.Installments {
			if in.DueDate.After(k.latest.Time) {
				k.latest = in.DueDate
			}
		}
	}
	return k
}

func expenseGroupKey(group []core.Expense, now core.Date) sortKey {
	k := sortKey{
		settled: ExpenseGroupSettled(group, now),
		hasPlan: len(group) > 1,
	}
	for _, e := range group {
		if e.Date.After(k.latest.Time) {
			k.latest = e.Date
		}
		if e.PaidOn == nil || !e.PaidOn.Before(now.Time) {
			k.remaining++
		}
	}
	return k
}

// SortSales orders sales for display. The sort is stable so equal keys keep
// their incoming order.
func SortSales(sales []core.Sale, now core.Date) {
	keys := make([]sortKey, len(sales))
	for i, s := range sales {
		keys[i] = saleKey(s, now)
	}
	idx := make([]int, len(sales))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]].less(keys[idx[b]]) })
	out := make([]core.Sale, len(sales))
	for i, j := range idx {
		out[i] = sales[j]
	}
	copy(sales, out)
}

// SortExpenseGroups orders expense groups for display with the same keys as
// SortSales.
func SortExpenseGroups(groups [][]core.Expense, now core.Date) {
	keys := make([]sortKey, len(groups))
	for i, g := range groups {
		keys[i] = expenseGroupKey(g, now)
	}
	idx := make([]int, len(groups))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]].less(keys[idx[b]]) })
	out := make([][]core.Expense, len(groups))
	for i, j := range idx {
		out[i] = groups[j]
	}
	copy(groups, out)
}

// CategoryAmount is an amount aggregated under one expense category.
type CategoryAmount struct {
	Name   string     `json:"name"`
	Amount core.Money `json:"amount"`
}

// Overview is the compact summary for one period: what is owed to the
// business, what the business owes, and the profit recognized.
type Overview struct {
	Period     string           `json:"period"`
	Receivable core.Money       `json:"receivable"`
	Payable    core.Money       `json:"payable"`
	Profit     core.Money       `json:"profit"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// BuildOverview aggregates all sales and expenses into the summary for one
// period key.
func BuildOverview(periodKey string, sales []core.Sale, expenses []core.Expense, now core.Date) (Overview, error) {
	if periodKey != core.PeriodAll {
		if _, err := core.ParsePeriod(periodKey); err != nil {
			return Overview{}, fmt.Errorf("period %q: %w", periodKey, err)
		}
	}
	ov := Overview{Period: periodKey}

	for _, s := range sales {
		amount, err := AmountForPeriod(s, periodKey, now)
		if err != nil {
			return Overview{}, err
		}
		profit, err := ProfitForPeriod(s, periodKey, now)
		if err != nil {
			return Overview{}, err
		}
		ov.Receivable = ov.Receivable.Add(amount)
		ov.Profit = ov.Profit.Add(profit)
	}

	byCategory := make(map[core.ExpenseCategory]int64)
	for _, e := range expenses {
		amount, err := ExpenseAmountForPeriod([]core.Expense{e}, periodKey)
		if err != nil {
			return Overview{}, err
		}
		ov.Payable = ov.Payable.Add(amount)
		byCategory[e.Category] += amount.Cents
	}
	for _, c := range core.Categories() {
		if cents, ok := byCategory[c]; ok {
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{
				Name:   string(c),
				Amount: core.Money{Cents: cents},
			})
		}
	}
	return ov, nil
}

// GroupExpenses splits a flat expense list into display groups keyed by
// GroupID, preserving installment index order inside each group and first
// appearance order between groups.
func GroupExpenses(expenses []core.Expense) [][]core.Expense {
	byGroup := make(map[string][]core.Expense)
	var order []string
	for _, e := range expenses {
		if _, ok := byGroup[e.GroupID]; !ok {
			order = append(order, e.GroupID)
		}
		byGroup[e.GroupID] = append(byGroup[e.GroupID], e)
	}
	out := make([][]core.Expense, 0, len(order))
	for _, id := range order {
		g := byGroup[id]
		sort.SliceStable(g, func(a, b int) bool { return g[a].Installment < g[b].Installment })
		out = append(out, g)
	}
	return out
}
