package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tesoreria/internal/core"
)

// Ledger is the master collection of movements.
//
// Every mutation recomputes the all-time balance and, outside of a batch,
// reconciles the whole collection against the store. Persistence failures
// are swallowed: the in-memory collection stays authoritative and the
// reconciler is left dirty for Retry.
type Ledger struct {
	mu         sync.Mutex
	movements  []core.Movement
	totals     core.Totals
	version    uint64
	batchDepth int

	store      Store
	reconciler *Reconciler
	reporter   FailureReporter
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithFailureReporter registers a reporter for swallowed persistence failures.
func WithFailureReporter(fr FailureReporter) Option {
	return func(l *Ledger) { l.reporter = fr }
}

// Open loads the persisted movements into a new ledger. A failed load is
// logged and the ledger starts empty.
func Open(ctx context.Context, store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	l.reconciler = NewReconciler(store, l.reporter)

	movements, err := store.LoadAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load movements, starting with an empty ledger",
			"component", "ledger",
			"error", err)
		movements = nil
	}
	l.movements = snapshot(movements)
	l.recompute()

	slog.InfoContext(ctx, "Ledger opened",
		"component", "ledger",
		"movements", len(l.movements),
		"balance", l.totals.Balance.String())
	return l
}

// Reconciler exposes the reconciler so a retry loop can drive it.
func (l *Ledger) Reconciler() *Reconciler {
	return l.reconciler
}

// All returns a copy of every movement in the ledger.
func (l *Ledger) All() []core.Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot(l.movements)
}

// OnDate returns copies of the movements recorded on d.
func (l *Ledger) OnDate(d core.Date) []core.Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.Movement
	for _, m := range l.movements {
		if m.OnDate(d) {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of movements.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.movements)
}

// Balance is all-time income minus all-time expense.
func (l *Ledger) Balance() core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals.Balance
}

// Totals returns all-time income, expense and balance.
func (l *Ledger) Totals() core.Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}

// Version increases on every mutation.
func (l *Ledger) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Add appends m, or replaces the movement with the same id.
func (l *Ledger) Add(ctx context.Context, m core.Movement) (core.Movement, error) {
	m, err := prepare(m)
	if err != nil {
		return core.Movement{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(m.ID); i >= 0 {
		l.movements[i] = m
	} else {
		l.movements = append(l.movements, m)
	}
	l.changedLocked(ctx)
	return m, nil
}

// Remove deletes the movement with the given id. It reports whether one was
// found.
func (l *Ledger) Remove(ctx context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.movements = append(l.movements[:i], l.movements[i+1:]...)
	l.changedLocked(ctx)
	return true
}

// ReplaceDay removes every movement on d and inserts movements in its place.
// All of movements must be valid and dated d; otherwise nothing changes.
func (l *Ledger) ReplaceDay(ctx context.Context, d core.Date, movements []core.Movement) error {
	prepared := make([]core.Movement, 0, len(movements))
	for _, m := range movements {
		if !m.OnDate(d) {
			return fmt.Errorf("%w: movement %s is dated %s, not %s",
				core.ErrValidationRejected, m.ID, m.Date, d)
		}
		p, err := prepare(m)
		if err != nil {
			return err
		}
		prepared = append(prepared, p)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.movements[:0:0]
	for _, m := range l.movements {
		if !m.OnDate(d) {
			kept = append(kept, m)
		}
	}
	l.movements = append(kept, prepared...)
	l.changedLocked(ctx)
	return nil
}

// QuickAdd appends a single movement and persists only that row. A failed
// insert leaves the reconciler dirty so a later Retry repairs the store.
// While the reconciler is dirty its pending set predates m, so the whole
// collection is reconciled (or recorded as pending inside a batch) instead.
func (l *Ledger) QuickAdd(ctx context.Context, m core.Movement) (core.Movement, error) {
	m, err := prepare(m)
	if err != nil {
		return core.Movement{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.movements = append(l.movements, m)
	l.recompute()
	l.version++

	if l.reconciler.Dirty() {
		if l.batchDepth > 0 {
			l.reconciler.MarkDirty(l.movements)
		} else {
			_ = l.reconciler.Reconcile(ctx, l.movements)
		}
		return m, nil
	}

	if err := l.store.Add(ctx, m); err != nil {
		slog.ErrorContext(ctx, "Failed to persist movement, keeping in-memory state",
			"component", "ledger",
			"id", m.ID,
			"error", err)
		l.reconciler.MarkDirty(l.movements)
		if l.reporter != nil {
			l.reporter.ReportPersistenceFailure(ctx, err)
		}
	}
	return m, nil
}

// BeginBatch suspends per-mutation reconciliation until the matching
// EndBatch. Batches nest.
func (l *Ledger) BeginBatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batchDepth++
}

// EndBatch closes a batch. Closing the outermost batch reconciles once.
func (l *Ledger) EndBatch(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batchDepth == 0 {
		return
	}
	l.batchDepth--
	if l.batchDepth == 0 {
		_ = l.reconciler.Reconcile(ctx, l.movements)
	}
}

// Batching reports whether a batch is open.
func (l *Ledger) Batching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batchDepth > 0
}

func (l *Ledger) changedLocked(ctx context.Context) {
	l.recompute()
	l.version++
	if l.batchDepth > 0 {
		return
	}
	_ = l.reconciler.Reconcile(ctx, l.movements)
}

func (l *Ledger) recompute() {
	l.totals = core.TotalsOf(l.movements)
}

func (l *Ledger) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, m := range l.movements {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func prepare(m core.Movement) (core.Movement, error) {
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	if m.ID == "" {
		m.ID = core.NewID()
	}
	return m, nil
}
