package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tesoreria/internal/core"
)

// FailureReporter is told about persistence failures the ledger swallows.
type FailureReporter interface {
	ReportPersistenceFailure(ctx context.Context, err error)
}

// FailureReporterFunc adapts a function to FailureReporter.
type FailureReporterFunc func(ctx context.Context, err error)

func (f FailureReporterFunc) ReportPersistenceFailure(ctx context.Context, err error) {
	f(ctx, err)
}

// Reconciler makes the store match a working set of movements.
//
// A failed reconciliation leaves the reconciler dirty, holding the set that
// should have been persisted, until a later Reconcile or Retry succeeds.
type Reconciler struct {
	store    Store
	reporter FailureReporter

	mu         sync.Mutex
	dirty      bool
	pending    []core.Movement
	generation uint64
}

// NewReconciler creates a reconciler over store. reporter may be nil.
func NewReconciler(store Store, reporter FailureReporter) *Reconciler {
	return &Reconciler{store: store, reporter: reporter}
}

// Reconcile loads the persisted set, diffs it against working and applies
// the delta in one transaction. The returned error has already been logged
// and reported; callers that follow the swallow policy may ignore it.
func (r *Reconciler) Reconcile(ctx context.Context, working []core.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.reconcileLocked(ctx, snapshot(working))
	if err != nil {
		r.generation++
	}
	return err
}

// MarkDirty records working as the set the store should hold after a write
// that failed outside of Reconcile.
func (r *Reconciler) MarkDirty(working []core.Movement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
	r.pending = snapshot(working)
	r.generation++
}

// Dirty reports whether the store is known to lag behind the working set.
func (r *Reconciler) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Generation counts failures caused by ledger mutations. Failed retries do
// not advance it.
func (r *Reconciler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Retry reconciles the last set that failed to persist. It is a no-op when
// the reconciler is clean.
func (r *Reconciler) Retry(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}
	return r.reconcileLocked(ctx, r.pending)
}

func (r *Reconciler) reconcileLocked(ctx context.Context, working []core.Movement) error {
	persisted, err := r.store.LoadAll(ctx)
	if err != nil {
		return r.fail(ctx, working, fmt.Errorf("load persisted movements: %w", err))
	}

	delta := Diff(persisted, working)
	if err := r.store.Apply(ctx, delta.Deletions, delta.Upserts); err != nil {
		return r.fail(ctx, working, fmt.Errorf("apply delta: %w", err))
	}

	if r.dirty {
		slog.InfoContext(ctx, "Store caught up with ledger",
			"component", "ledger",
			"movements", len(working))
	}
	r.dirty = false
	r.pending = nil

	slog.DebugContext(ctx, "Ledger reconciled",
		"component", "ledger",
		"deleted", len(delta.Deletions),
		"upserted", len(delta.Upserts))
	return nil
}

func (r *Reconciler) fail(ctx context.Context, working []core.Movement, err error) error {
	r.dirty = true
	r.pending = working

	slog.ErrorContext(ctx, "Failed to persist ledger, keeping in-memory state",
		"component", "ledger",
		"movements", len(working),
		"error", err)

	if r.reporter != nil {
		r.reporter.ReportPersistenceFailure(ctx, err)
	}
	return err
}

func snapshot(ms []core.Movement) []core.Movement {
	out := make([]core.Movement, len(ms))
	copy(out, ms)
	return out
}
