// Package ledger keeps the master collection of movements and reconciles it
// against a persistent Store.
package ledger

import (
	"context"

	"tesoreria/internal/core"
)

// Store is the persistence collaborator of the ledger.
type Store interface {
	// LoadAll returns every persisted movement, most recent date first.
	LoadAll(ctx context.Context) ([]core.Movement, error)

	// Apply deletes and upserts in a single transaction.
	Apply(ctx context.Context, deletions []string, upserts []core.Movement) error

	// Add inserts one movement without touching the rest of the store.
	Add(ctx context.Context, m core.Movement) error
}

// Delta is the set of store changes that turns persisted into working.
type Delta struct {
	Deletions []string
	Upserts   []core.Movement
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Deletions) == 0 && len(d.Upserts) == 0
}

// Diff computes the changes that make persisted equal to working.
//
// Every persisted id missing from working is deleted. The empty id never
// takes part: it is not deleted and an empty id in working protects nothing.
// All of working is upserted; the store overwrites existing rows by id.
func Diff(persisted, working []core.Movement) Delta {
	keep := make(map[string]struct{}, len(working))
	for _, m := range working {
		if m.ID != "" {
			keep[m.ID] = struct{}{}
		}
	}

	var d Delta
	seen := make(map[string]struct{}, len(persisted))
	for _, m := range persisted {
		if m.ID == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		if _, ok := keep[m.ID]; !ok {
			d.Deletions = append(d.Deletions, m.ID)
		}
	}

	d.Upserts = make([]core.Movement, len(working))
	copy(d.Upserts, working)
	return d
}
