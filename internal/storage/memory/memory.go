// Package memory provides an in-memory movement store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tesoreria/internal/core"
)

// Store keeps movements in a map keyed by id.
type Store struct {
	mu    sync.Mutex
	rows  map[string]core.Movement
	order []string

	// fail, when set, is returned by every operation.
	fail    error
	applies int
	adds    int
}

func NewStore() *Store {
	return &Store{rows: make(map[string]core.Movement)}
}

// Seed stores movements directly, bypassing failure injection.
func (s *Store) Seed(ms ...core.Movement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		s.putLocked(m)
	}
}

// FailWith makes every subsequent call fail with err. A nil err heals the
// store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// LoadAll returns movements ordered by date descending, then by insertion.
func (s *Store) LoadAll(ctx context.Context) ([]core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, s.fail)
	}
	out := make([]core.Movement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// Apply deletes and upserts atomically: on failure nothing changes.
func (s *Store) Apply(ctx context.Context, deletions []string, upserts []core.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, s.fail)
	}
	s.applies++
	for _, id := range deletions {
		s.deleteLocked(id)
	}
	for _, m := range upserts {
		s.putLocked(m)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, m core.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, s.fail)
	}
	if _, ok := s.rows[m.ID]; ok {
		return fmt.Errorf("movement %s already exists", m.ID)
	}
	s.adds++
	s.putLocked(m)
	return nil
}

// Len returns the number of stored movements.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Get returns the stored movement with the given id.
func (s *Store) Get(id string) (core.Movement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	return m, ok
}

// Applies counts successful Apply calls.
func (s *Store) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

// Adds counts successful Add calls.
func (s *Store) Adds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds
}

func (s *Store) Close() error { return nil }

func (s *Store) putLocked(m core.Movement) {
	if _, ok := s.rows[m.ID]; !ok {
		s.order = append(s.order, m.ID)
	}
	s.rows[m.ID] = m
}

func (s *Store) deleteLocked(id string) {
	if _, ok := s.rows[id]; !ok {
		return
	}
	delete(s.rows, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
