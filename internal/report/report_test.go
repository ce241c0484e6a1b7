package report

import (
	"context"
	"testing"

	"tesoreria/internal/core"
	"tesoreria/internal/ledger"
	"tesoreria/internal/storage/memory"
)

var (
	jan1 = core.NewDate(2024, 1, 1)
	jan2 = core.NewDate(2024, 1, 2)
	jan3 = core.NewDate(2024, 1, 3)
)

func mv(kind core.Kind, d core.Date, cents int64) core.Movement {
	return core.NewMovement(kind, d, string(kind), core.MoneyFromCents(cents))
}

func dp(d core.Date) *core.Date { return &d }

// 2024-01-01: +100 -30, 2024-01-02: +50
func example() []core.Movement {
	return []core.Movement{
		mv(core.Income, jan1, 10000),
		mv(core.Expense, jan1, 3000),
		mv(core.Income, jan2, 5000),
	}
}

func TestGenerateRunningBalances(t *testing.T) {
	rep := Generate(example(), Filter{})
	if len(rep.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(rep.Days))
	}

	first, second := rep.Days[0], rep.Days[1]
	if !first.Date.Equal(jan2) || !second.Date.Equal(jan1) {
		t.Fatalf("days should be most recent first: %s, %s", first.Date, second.Date)
	}
	if first.Opening.String() != "70.00" || first.Net.String() != "50.00" || first.Closing.String() != "120.00" {
		t.Fatalf("unexpected 2024-01-02 row %+v", first)
	}
	if second.Opening.String() != "0.00" || second.Net.String() != "70.00" || second.Closing.String() != "70.00" {
		t.Fatalf("unexpected 2024-01-01 row %+v", second)
	}
	if len(second.Incomes) != 1 || len(second.Expenses) != 1 {
		t.Fatalf("movements not split by kind")
	}

	sum := rep.Summary
	if sum.Days != 2 || sum.Income.String() != "150.00" || sum.Expense.String() != "30.00" || sum.FinalBalance.String() != "120.00" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestGenerateOpeningChainsClosing(t *testing.T) {
	ms := append(example(),
		mv(core.Expense, jan3, 2000),
		mv(core.Income, core.NewDate(2024, 1, 10), 100),
	)
	rep := Generate(ms, Filter{})
	for i := 0; i < len(rep.Days)-1; i++ {
		if !rep.Days[i].Opening.Equal(rep.Days[i+1].Closing) {
			t.Fatalf("row %d opening %s != next closing %s", i, rep.Days[i].Opening, rep.Days[i+1].Closing)
		}
		if !rep.Days[i].Date.After(rep.Days[i+1].Date) {
			t.Fatalf("rows not strictly descending at %d", i)
		}
	}
	last := rep.Days[len(rep.Days)-1]
	if !last.Opening.IsZero() {
		t.Fatalf("earliest day should open at zero, got %s", last.Opening)
	}
	if !rep.Summary.FinalBalance.Equal(rep.Days[0].Closing) {
		t.Fatalf("final balance should be the most recent closing")
	}
	// Days without movements are never synthesized.
	if len(rep.Days) != 4 {
		t.Fatalf("expected 4 days, got %d", len(rep.Days))
	}
}

func TestGenerateEmpty(t *testing.T) {
	rep := Generate(nil, Filter{})
	if !rep.Empty() || rep.Summary.Days != 0 || !rep.Summary.FinalBalance.IsZero() {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestGenerateFilterBoundsAreInclusive(t *testing.T) {
	ms := append(example(), mv(core.Income, jan3, 100))

	var f Filter
	f.SetStart(dp(jan2))
	f.SetEnd(dp(jan3))
	rep := Generate(ms, f)
	if len(rep.Days) != 2 || !rep.Days[0].Date.Equal(jan3) || !rep.Days[1].Date.Equal(jan2) {
		t.Fatalf("expected jan3 and jan2, got %+v", rep.Days)
	}
	// The running balance restarts at the filter start.
	if !rep.Days[1].Opening.IsZero() {
		t.Fatalf("filtered report should open at zero, got %s", rep.Days[1].Opening)
	}

	f.SetRange(dp(jan2), dp(jan2))
	if rep := Generate(ms, f); len(rep.Days) != 1 || !rep.Days[0].Date.Equal(jan2) {
		t.Fatalf("single-day range should keep only jan2")
	}
}

func TestFilterStateMachine(t *testing.T) {
	var f Filter
	if f.Enabled || f.Active() {
		t.Fatalf("zero filter must be disabled")
	}

	f.SetEnd(dp(jan1))
	if !f.Enabled {
		t.Fatalf("setting a bound should enable the filter")
	}
	f.SetStart(dp(jan3))
	if !f.End.Equal(jan3) {
		t.Fatalf("end before start should clamp to start, got %s", f.End)
	}
	f.SetEnd(dp(jan2))
	if !f.End.Equal(jan3) {
		t.Fatalf("setting an end before start should clamp, got %s", f.End)
	}

	f.Clear()
	if f.Enabled || f.Start == nil || f.End == nil {
		t.Fatalf("clear should disable and keep bounds: %+v", f)
	}
	if !f.Contains(jan1) {
		t.Fatalf("disabled filter contains everything")
	}

	f.SetStart(nil)
	if f.Enabled {
		t.Fatalf("clearing a bound must not enable the filter")
	}

	f.SetStart(dp(jan1))
	f.Reset()
	if f.Enabled || f.Start != nil || f.End != nil {
		t.Fatalf("reset should drop bounds: %+v", f)
	}

	if clamped := f.SetRange(dp(jan3), dp(jan1)); !clamped {
		t.Fatalf("SetRange should report the clamp")
	}
}

func TestFilterStaysEnabledWhenBoundsRemoved(t *testing.T) {
	var f Filter
	f.SetStart(dp(jan1))
	f.SetStart(nil)
	if !f.Enabled {
		t.Fatalf("only Clear or Reset disable the filter")
	}
	if f.Active() {
		t.Fatalf("a filter with no bounds restricts nothing")
	}
}

func TestViewFollowsLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Seed(example()...)
	l := ledger.Open(ctx, store)
	v := NewView(l)

	if got := v.Report().Summary.FinalBalance.String(); got != "120.00" {
		t.Fatalf("expected 120.00, got %s", got)
	}

	// Clearing 2024-01-01 leaves one day opening at zero.
	if err := l.ReplaceDay(ctx, jan1, nil); err != nil {
		t.Fatalf("replace day: %v", err)
	}
	rep := v.Report()
	if len(rep.Days) != 1 {
		t.Fatalf("view should regenerate after a ledger change, got %d days", len(rep.Days))
	}
	if rep.Days[0].Opening.String() != "0.00" || rep.Days[0].Closing.String() != "50.00" {
		t.Fatalf("unexpected row %+v", rep.Days[0])
	}

	rep = v.SetStart(dp(jan3))
	if !rep.Empty() {
		t.Fatalf("filter change should regenerate immediately")
	}
	rep = v.Clear()
	if rep.Empty() || v.Filter().Start == nil {
		t.Fatalf("clear should show everything and keep the bound")
	}
	v.Reset()
	if v.Filter().Start != nil {
		t.Fatalf("reset should drop the bound")
	}
}

func TestViewReportsAreIndependentCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Seed(example()...)
	v := NewView(ledger.Open(ctx, store))
	v.SetStart(dp(jan1))

	first := v.Report()
	first.Days[0].Incomes[0].Description = "tampered"
	first.Days[1].Expenses = append(first.Days[1].Expenses[:0], mv(core.Expense, jan1, 1))
	*first.Range.Start = jan3

	second := v.Report()
	if second.Days[0].Incomes[0].Description == "tampered" {
		t.Fatal("callers share the cached income slices")
	}
	if second.Days[1].Expenses[0].Amount.String() != "30.00" {
		t.Fatalf("callers share the cached expense slices: %+v", second.Days[1].Expenses)
	}
	if !second.Range.Start.Equal(jan1) || !v.Filter().Start.Equal(jan1) {
		t.Fatal("callers share the filter bounds")
	}
}
