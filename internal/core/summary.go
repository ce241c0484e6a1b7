package core

// Totals aggregates a set of movements.
type Totals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// TotalsOf sums incomes and expenses of ms.
func TotalsOf(ms []Movement) Totals {
	var t Totals
	for _, m := range ms {
		switch m.Kind {
		case Income:
			t.Income = t.Income.Add(m.Amount)
		case Expense:
			t.Expense = t.Expense.Add(m.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// Sum adds the amounts of ms regardless of kind.
func Sum(ms []Movement) Money {
	var total Money
	for _, m := range ms {
		total = total.Add(m.Amount)
	}
	return total
}
