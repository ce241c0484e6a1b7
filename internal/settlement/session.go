// Package settlement implements the daily cash closing: staging the incomes
// and expenses of one date and replacing that date in the ledger at once.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tesoreria/internal/core"
)

// Ledger is the part of the master collection a session works against.
type Ledger interface {
	OnDate(d core.Date) []core.Movement
	ReplaceDay(ctx context.Context, d core.Date, movements []core.Movement) error
	BeginBatch()
	EndBatch(ctx context.Context)
	Balance() core.Money
}

// Draft holds the not yet staged input of one kind.
type Draft struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// State is a point-in-time copy of a session.
type State struct {
	Date           core.Date       `json:"date"`
	EditMode       bool            `json:"edit_mode"`
	Incomes        []core.Movement `json:"incomes"`
	Expenses       []core.Movement `json:"expenses"`
	Totals         core.Totals     `json:"totals"`
	AllTimeBalance core.Money      `json:"all_time_balance"`
	IncomeDraft    Draft           `json:"income_draft"`
	ExpenseDraft   Draft           `json:"expense_draft"`
}

// Session stages the movements of one date.
type Session struct {
	ledger Ledger

	mu       sync.Mutex
	date     core.Date
	editMode bool
	incomes  []core.Movement
	expenses []core.Movement
	totals   core.Totals
	drafts   map[core.Kind]Draft

	// loaded is the ledger's view of the date the staged lists are based on.
	loaded []core.Movement
}

// New creates a session on date d and loads its movements.
func New(l Ledger, d core.Date) *Session {
	s := &Session{
		ledger: l,
		drafts: make(map[core.Kind]Draft, 2),
	}
	s.loadLocked(d)
	return s
}

// SetDate switches the session to d, discarding anything staged.
func (s *Session) SetDate(d core.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(d)
}

// Date returns the target date.
func (s *Session) Date() core.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// EditMode reports whether the ledger already had movements for the date
// when it was loaded.
func (s *Session) EditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.editMode
}

// Incomes returns a copy of the staged incomes.
func (s *Session) Incomes() []core.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return clone(s.incomes)
}

// Expenses returns a copy of the staged expenses.
func (s *Session) Expenses() []core.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return clone(s.expenses)
}

// Totals returns the staged income, staged expense and their difference.
func (s *Session) Totals() core.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.totals
}

// AllTimeBalance is the ledger balance across every date.
func (s *Session) AllTimeBalance() core.Money {
	return s.ledger.Balance()
}

// State returns a snapshot of the whole session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return State{
		Date:           s.date,
		EditMode:       s.editMode,
		Incomes:        clone(s.incomes),
		Expenses:       clone(s.expenses),
		Totals:         s.totals,
		AllTimeBalance: s.ledger.Balance(),
		IncomeDraft:    s.drafts[core.Income],
		ExpenseDraft:   s.drafts[core.Expense],
	}
}

// Stage appends a new movement of kind to the staged list. A blank
// description or non-positive amount is rejected with
// core.ErrValidationRejected and leaves the session unchanged.
func (s *Session) Stage(kind core.Kind, description string, amount core.Money) (core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	return s.stageLocked(kind, description, amount)
}

// SetDraft replaces the input of kind.
func (s *Session) SetDraft(kind core.Kind, description, amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[kind] = Draft{Description: description, Amount: amount}
}

// Draft returns the current input of kind.
func (s *Session) Draft(kind core.Kind) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[kind]
}

// StageDraft stages the input of kind. The draft is kept on rejection.
func (s *Session) StageDraft(kind core.Kind) (core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	d := s.drafts[kind]
	amount, err := core.ParseAmount(d.Amount)
	if err != nil {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, err)
	}
	return s.stageLocked(kind, d.Description, amount)
}

// Unstage removes the staged movement with the given id from whichever list
// holds it.
func (s *Session) Unstage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	var ok bool
	if s.incomes, ok = without(s.incomes, id); !ok {
		if s.expenses, ok = without(s.expenses, id); !ok {
			return false
		}
	}
	s.recomputeLocked()
	return true
}

// Prompt returns the confirmation the session would ask for, and whether
// one is needed at all.
func (s *Session) Prompt() (Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()
	if s.nothingToSettleLocked() {
		return Prompt{}, false
	}
	return s.promptLocked(), true
}

// Confirm asks p to approve the closing and, when approved, replaces every
// movement of the date with the staged ones in a single ledger batch.
func (s *Session) Confirm(ctx context.Context, p Prompter) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked()

	if s.nothingToSettleLocked() {
		return OutcomeNothingToSettle, nil
	}

	ok, err := p.Confirm(ctx, s.promptLocked())
	if err != nil {
		return OutcomeDeclined, fmt.Errorf("confirm closing: %w", err)
	}
	if !ok {
		slog.InfoContext(ctx, "Cash closing declined",
			"component", "settlement",
			"date", s.date.String())
		return OutcomeDeclined, nil
	}

	outcome := OutcomeCreated
	switch {
	case s.editMode && len(s.incomes) == 0 && len(s.expenses) == 0:
		outcome = OutcomeCleared
	case s.editMode:
		outcome = OutcomeUpdated
	}

	staged := make([]core.Movement, 0, len(s.incomes)+len(s.expenses))
	staged = append(staged, s.incomes...)
	staged = append(staged, s.expenses...)

	s.ledger.BeginBatch()
	err = s.ledger.ReplaceDay(ctx, s.date, staged)
	s.ledger.EndBatch(ctx)
	if err != nil {
		return OutcomeDeclined, fmt.Errorf("replace day %s: %w", s.date, err)
	}

	slog.InfoContext(ctx, "Cash closing saved",
		"component", "settlement",
		"date", s.date.String(),
		"outcome", outcome.String(),
		"incomes", len(s.incomes),
		"expenses", len(s.expenses))

	s.loadLocked(s.date)
	return outcome, nil
}

func (s *Session) stageLocked(kind core.Kind, description string, amount core.Money) (core.Movement, error) {
	if !kind.Valid() {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, core.ErrInvalidKind)
	}
	if strings.TrimSpace(description) == "" {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, core.ErrEmptyDescription)
	}
	if !amount.IsPositive() {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, core.ErrInvalidAmount)
	}

	m := core.NewMovement(kind, s.date, description, amount)
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	if kind == core.Income {
		s.incomes = append(s.incomes, m)
	} else {
		s.expenses = append(s.expenses, m)
	}
	delete(s.drafts, kind)
	s.recomputeLocked()
	return m, nil
}

func (s *Session) loadLocked(d core.Date) {
	s.date = d
	s.incomes = nil
	s.expenses = nil
	existing := s.ledger.OnDate(d)
	for _, m := range existing {
		switch m.Kind {
		case core.Income:
			s.incomes = append(s.incomes, m)
		case core.Expense:
			s.expenses = append(s.expenses, m)
		}
	}
	s.editMode = len(existing) > 0
	s.loaded = existing
	s.recomputeLocked()
}

// syncLocked rebases the staged lists when the ledger changed the date
// behind the session's back. Movements added to the date are staged, removed
// ones are dropped and edited ones take the ledger's values. Entries staged
// in the session and saved movements the user unstaged stay as they are.
func (s *Session) syncLocked() {
	current := s.ledger.OnDate(s.date)
	if sameMovements(current, s.loaded) {
		return
	}

	before := make(map[string]bool, len(s.loaded))
	for _, m := range s.loaded {
		before[m.ID] = true
	}
	now := make(map[string]core.Movement, len(current))
	for _, m := range current {
		now[m.ID] = m
	}

	rebase := func(staged []core.Movement) []core.Movement {
		out := staged[:0:0]
		for _, m := range staged {
			if !before[m.ID] {
				out = append(out, m)
				continue
			}
			if c, ok := now[m.ID]; ok && c.Kind == m.Kind {
				out = append(out, c)
			}
		}
		return out
	}
	s.incomes = rebase(s.incomes)
	s.expenses = rebase(s.expenses)

	for _, m := range current {
		if before[m.ID] && m.Kind == kindOf(s.loaded, m.ID) {
			continue
		}
		if m.Kind == core.Income {
			s.incomes = append(s.incomes, m)
		} else {
			s.expenses = append(s.expenses, m)
		}
	}

	s.editMode = len(current) > 0
	s.loaded = current
	s.recomputeLocked()
}

func (s *Session) recomputeLocked() {
	s.totals = core.Totals{
		Income:  core.Sum(s.incomes),
		Expense: core.Sum(s.expenses),
	}
	s.totals.Balance = s.totals.Income.Sub(s.totals.Expense)
}

func (s *Session) nothingToSettleLocked() bool {
	return !s.editMode && len(s.incomes) == 0 && len(s.expenses) == 0
}

func (s *Session) promptLocked() Prompt {
	p := Prompt{
		Date:     s.date,
		Update:   s.editMode,
		Incomes:  len(s.incomes),
		Expenses: len(s.expenses),
		Totals:   s.totals,
	}
	if s.editMode {
		p.Title = "Update cash closing"
		p.Message = fmt.Sprintf("A cash closing already exists for %s. Replace it with %d income(s) and %d expense(s)?",
			s.date, len(s.incomes), len(s.expenses))
		if len(s.incomes) == 0 && len(s.expenses) == 0 {
			p.Message = fmt.Sprintf("A cash closing already exists for %s. Saving with no movements will clear the day. Continue?", s.date)
		}
	} else {
		p.Title = "Save cash closing"
		p.Message = fmt.Sprintf("Save the cash closing for %s with %d income(s) and %d expense(s)?",
			s.date, len(s.incomes), len(s.expenses))
	}
	return p
}

func clone(ms []core.Movement) []core.Movement {
	if ms == nil {
		return []core.Movement{}
	}
	out := make([]core.Movement, len(ms))
	copy(out, ms)
	return out
}

func without(ms []core.Movement, id string) ([]core.Movement, bool) {
	for i, m := range ms {
		if m.ID == id {
			return append(ms[:i:i], ms[i+1:]...), true
		}
	}
	return ms, false
}

func sameMovements(a, b []core.Movement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Kind != b[i].Kind ||
			a[i].Description != b[i].Description ||
			!a[i].Date.Equal(b[i].Date) ||
			!a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}

func kindOf(ms []core.Movement, id string) core.Kind {
	for _, m := range ms {
		if m.ID == id {
			return m.Kind
		}
	}
	return ""
}
