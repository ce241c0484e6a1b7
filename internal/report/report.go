// Package report groups ledger movements by day and chains running balances
// across the days of a period.
package report

import (
	"sort"

	"tesoreria/internal/core"
)

// DaySummary is one reported day.
type DaySummary struct {
	Date     core.Date       `json:"date"`
	Incomes  []core.Movement `json:"incomes"`
	Expenses []core.Movement `json:"expenses"`
	Income   core.Money      `json:"income"`
	Expense  core.Money      `json:"expense"`
	Net      core.Money      `json:"net"`
	Opening  core.Money      `json:"opening"`
	Closing  core.Money      `json:"closing"`
}

// Summary aggregates a whole report.
type Summary struct {
	Days         int        `json:"days"`
	Income       core.Money `json:"income"`
	Expense      core.Money `json:"expense"`
	FinalBalance core.Money `json:"final_balance"`
}

// Report lists the reported days, most recent first.
type Report struct {
	Days    []DaySummary `json:"days"`
	Range   Filter       `json:"range"`
	Summary Summary      `json:"summary"`
}

// Clone returns a copy of r that shares no slices or bounds with it.
func (r Report) Clone() Report {
	out := r
	out.Range = r.Range.clone()
	if r.Days != nil {
		out.Days = make([]DaySummary, len(r.Days))
		for i, d := range r.Days {
			d.Incomes = cloneMovements(d.Incomes)
			d.Expenses = cloneMovements(d.Expenses)
			out.Days[i] = d
		}
	}
	return out
}

// Empty reports whether no day was reported.
func (r Report) Empty() bool {
	return len(r.Days) == 0
}

// Generate builds the report of movements restricted to f.
//
// Days are walked oldest first starting from a zero balance, so with an
// active filter the first reported day always opens at zero. The result
// lists days most recent first; each day opens at the closing balance of the
// day before it chronologically.
func Generate(movements []core.Movement, f Filter) Report {
	byDay := make(map[string]*DaySummary)
	var order []*DaySummary
	for _, m := range movements {
		if !f.Contains(m.Date) {
			continue
		}
		key := m.Date.String()
		ds, ok := byDay[key]
		if !ok {
			ds = &DaySummary{Date: m.Date}
			byDay[key] = ds
			order = append(order, ds)
		}
		switch m.Kind {
		case core.Income:
			ds.Incomes = append(ds.Incomes, m)
			ds.Income = ds.Income.Add(m.Amount)
		case core.Expense:
			ds.Expenses = append(ds.Expenses, m)
			ds.Expense = ds.Expense.Add(m.Amount)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].Date.Before(order[j].Date)
	})

	var running core.Money
	rep := Report{Range: f, Days: make([]DaySummary, len(order))}
	for i, ds := range order {
		ds.Net = ds.Income.Sub(ds.Expense)
		ds.Opening = running
		running = running.Add(ds.Net)
		ds.Closing = running

		rep.Summary.Income = rep.Summary.Income.Add(ds.Income)
		rep.Summary.Expense = rep.Summary.Expense.Add(ds.Expense)

		// Most recent first.
		rep.Days[len(order)-1-i] = *ds
	}
	rep.Summary.Days = len(order)
	rep.Summary.FinalBalance = running
	return rep
}

func cloneMovements(ms []core.Movement) []core.Movement {
	if ms == nil {
		return nil
	}
	out := make([]core.Movement, len(ms))
	copy(out, ms)
	return out
}
