package ledger

import (
	"context"
	"errors"
	"sort"
	"testing"

	"tesoreria/internal/core"
	"tesoreria/internal/storage/memory"
)

var day1 = core.NewDate(2024, 1, 1)

func mv(kind core.Kind, d core.Date, desc string, cents int64) core.Movement {
	return core.NewMovement(kind, d, desc, core.MoneyFromCents(cents))
}

func ids(ms []core.Movement) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	sort.Strings(out)
	return out
}

func sameSet(t *testing.T, store *memory.Store, l *Ledger) {
	t.Helper()
	persisted, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, b := ids(persisted), ids(l.All())
	if len(a) != len(b) {
		t.Fatalf("store has %d movements, ledger %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("store and ledger differ: %v vs %v", a, b)
		}
	}
}

func TestDiff(t *testing.T) {
	a := mv(core.Income, day1, "a", 100)
	b := mv(core.Income, day1, "b", 100)
	c := mv(core.Expense, day1, "c", 100)
	empty := core.Movement{ID: "", Date: day1, Description: "x", Amount: core.MoneyFromCents(1), Kind: core.Income}

	d := Diff([]core.Movement{a, b, empty}, []core.Movement{b, c})
	if len(d.Deletions) != 1 || d.Deletions[0] != a.ID {
		t.Fatalf("expected only a deleted, got %v", d.Deletions)
	}
	if len(d.Upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(d.Upserts))
	}

	// An empty id in working protects nothing and is never deleted.
	d = Diff([]core.Movement{empty, a}, []core.Movement{empty})
	if len(d.Deletions) != 1 || d.Deletions[0] != a.ID {
		t.Fatalf("unexpected deletions %v", d.Deletions)
	}

	if !Diff(nil, nil).Empty() {
		t.Fatalf("diff of empty sets should be empty")
	}
}

func TestDiffIsMinimal(t *testing.T) {
	a := mv(core.Income, day1, "a", 100)
	b := mv(core.Income, day1, "b", 200)
	d := Diff([]core.Movement{a, b}, []core.Movement{a, b})
	if len(d.Deletions) != 0 {
		t.Fatalf("identical sets must delete nothing, got %v", d.Deletions)
	}
}

func TestOpenLoadsStore(t *testing.T) {
	store := memory.NewStore()
	store.Seed(mv(core.Income, day1, "a", 10000), mv(core.Expense, day1, "b", 3000))

	l := Open(context.Background(), store)
	if l.Len() != 2 {
		t.Fatalf("expected 2 movements, got %d", l.Len())
	}
	if l.Balance().String() != "70.00" {
		t.Fatalf("expected balance 70.00, got %s", l.Balance())
	}
}

func TestOpenWithFailingStoreStartsEmpty(t *testing.T) {
	store := memory.NewStore()
	store.Seed(mv(core.Income, day1, "a", 100))
	store.FailWith(errors.New("locked"))

	l := Open(context.Background(), store)
	if l.Len() != 0 || !l.Balance().IsZero() {
		t.Fatalf("expected empty ledger, got %d movements", l.Len())
	}
}

func TestMutationsReconcile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)

	a, err := l.Add(ctx, mv(core.Income, day1, "a", 10000))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sameSet(t, store, l)

	// Replacing by id keeps a single row with the new fields.
	a.Description = "renamed"
	if _, err := l.Add(ctx, a); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := store.Get(a.ID)
	if got.Description != "renamed" || store.Len() != 1 {
		t.Fatalf("expected in-place overwrite, got %+v (len %d)", got, store.Len())
	}

	if !l.Remove(ctx, a.ID) {
		t.Fatalf("remove should find %s", a.ID)
	}
	if l.Remove(ctx, a.ID) {
		t.Fatalf("second remove should report false")
	}
	sameSet(t, store, l)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)
	l.Add(ctx, mv(core.Income, day1, "a", 100))
	l.Add(ctx, mv(core.Expense, day1, "b", 50))

	r := l.Reconciler()
	if err := r.Reconcile(ctx, l.All()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	first, _ := store.LoadAll(ctx)
	if err := r.Reconcile(ctx, l.All()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	second, _ := store.LoadAll(ctx)
	if len(first) != len(second) {
		t.Fatalf("second reconcile changed the store")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("second reconcile changed %s", first[i].ID)
		}
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)
	_, err := l.Add(ctx, mv(core.Income, day1, " ", 100))
	if !errors.Is(err, core.ErrValidationRejected) {
		t.Fatalf("expected ErrValidationRejected, got %v", err)
	}
	if l.Len() != 0 || l.Version() != 0 {
		t.Fatalf("rejected add must not change the ledger")
	}
}

func TestBatchReconcilesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)

	l.BeginBatch()
	l.Add(ctx, mv(core.Income, day1, "a", 100))
	l.Add(ctx, mv(core.Income, day1, "b", 100))
	l.Add(ctx, mv(core.Expense, day1, "c", 50))
	if store.Applies() != 0 || store.Len() != 0 {
		t.Fatalf("nothing should be persisted inside a batch")
	}
	if l.Balance().String() != "1.50" {
		t.Fatalf("balance must follow mutations inside a batch, got %s", l.Balance())
	}
	l.EndBatch(ctx)

	if store.Applies() != 1 {
		t.Fatalf("expected exactly one reconciliation, got %d", store.Applies())
	}
	sameSet(t, store, l)

	// An unmatched EndBatch does nothing.
	l.EndBatch(ctx)
	if store.Applies() != 1 {
		t.Fatalf("unmatched EndBatch reconciled")
	}
}

func TestReplaceDay(t *testing.T) {
	ctx := context.Background()
	day2 := day1.AddDays(1)
	store := memory.NewStore()
	keep := mv(core.Income, day2, "other day", 500)
	old := mv(core.Income, day1, "old", 100)
	store.Seed(keep, old)
	l := Open(ctx, store)

	fresh := mv(core.Expense, day1, "fresh", 40)
	if err := l.ReplaceDay(ctx, day1, []core.Movement{fresh}); err != nil {
		t.Fatalf("replace day: %v", err)
	}
	on := l.OnDate(day1)
	if len(on) != 1 || on[0].ID != fresh.ID {
		t.Fatalf("expected only fresh on day1, got %+v", on)
	}
	if len(l.OnDate(day2)) != 1 {
		t.Fatalf("other days must be untouched")
	}
	sameSet(t, store, l)

	wrong := mv(core.Income, day2, "wrong day", 100)
	if err := l.ReplaceDay(ctx, day1, []core.Movement{wrong}); !errors.Is(err, core.ErrValidationRejected) {
		t.Fatalf("expected rejection for a movement on another day, got %v", err)
	}
}

func TestQuickAddUsesAddOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)

	m, err := l.QuickAdd(ctx, mv(core.Income, day1, "tip", 250))
	if err != nil {
		t.Fatalf("quick add: %v", err)
	}
	if store.Adds() != 1 || store.Applies() != 0 {
		t.Fatalf("quick add should insert one row, adds=%d applies=%d", store.Adds(), store.Applies())
	}
	if _, ok := store.Get(m.ID); !ok {
		t.Fatalf("movement not persisted")
	}
	if l.Balance().String() != "2.50" {
		t.Fatalf("unexpected balance %s", l.Balance())
	}
}

func TestFailedPersistenceIsSwallowedAndRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	var reported []error
	l := Open(ctx, store, WithFailureReporter(FailureReporterFunc(func(_ context.Context, err error) {
		reported = append(reported, err)
	})))

	store.FailWith(errors.New("disk full"))
	a, err := l.Add(ctx, mv(core.Income, day1, "a", 100))
	if err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	b, _ := l.QuickAdd(ctx, mv(core.Income, day1, "b", 100))

	if l.Len() != 2 {
		t.Fatalf("in-memory set must stay authoritative")
	}
	if len(reported) != 2 || !errors.Is(reported[0], core.ErrStoreUnavailable) {
		t.Fatalf("expected two reported failures, got %v", reported)
	}
	r := l.Reconciler()
	if !r.Dirty() {
		t.Fatalf("reconciler should be dirty")
	}
	if err := r.Retry(ctx); err == nil {
		t.Fatalf("retry against a failing store should fail")
	}

	store.FailWith(nil)
	if err := r.Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if r.Dirty() {
		t.Fatalf("successful retry should clear the dirty flag")
	}
	for _, id := range []string{a.ID, b.ID} {
		if _, ok := store.Get(id); !ok {
			t.Fatalf("%s not persisted after retry", id)
		}
	}
	if err := r.Retry(ctx); err != nil {
		t.Fatalf("retry on a clean reconciler should be a no-op: %v", err)
	}
}

func TestQuickAddWhileDirtySurvivesRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)

	store.FailWith(errors.New("disk full"))
	a, _ := l.Add(ctx, mv(core.Income, day1, "a", 100))
	if !l.Reconciler().Dirty() {
		t.Fatalf("failed add should leave the reconciler dirty")
	}

	store.FailWith(nil)
	b, err := l.QuickAdd(ctx, mv(core.Expense, day1, "b", 40))
	if err != nil {
		t.Fatalf("quick add: %v", err)
	}
	if err := l.Reconciler().Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if l.Reconciler().Dirty() {
		t.Fatalf("reconciler should be clean")
	}
	for _, id := range []string{a.ID, b.ID} {
		if _, ok := store.Get(id); !ok {
			t.Fatalf("%s missing from the store", id)
		}
	}
	sameSet(t, store, l)
}

func TestQuickAddWhileDirtyInsideBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := Open(ctx, store)

	store.FailWith(errors.New("disk full"))
	l.Add(ctx, mv(core.Income, day1, "a", 100))
	store.FailWith(nil)

	l.BeginBatch()
	b, _ := l.QuickAdd(ctx, mv(core.Income, day1, "b", 100))
	if err := l.Reconciler().Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, ok := store.Get(b.ID); !ok {
		t.Fatalf("retry inside a batch dropped the quick-added movement")
	}
	l.EndBatch(ctx)
	sameSet(t, store, l)
}

func TestAllReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, memory.NewStore())
	l.Add(ctx, mv(core.Income, day1, "a", 100))

	all := l.All()
	all[0].Description = "mutated"
	if l.All()[0].Description != "a" {
		t.Fatalf("All must not alias the master collection")
	}
}
