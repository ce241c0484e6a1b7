package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// DateLayout is the wire and storage layout of a Date.
const DateLayout = "2006-01-02"

type (
	// Kind tells whether a movement adds to or takes from the cash box.
	Kind string

	// Date is a calendar day. The time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	// Movement is a single dated income or expense record.
	Movement struct {
		ID          string `json:"id"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Kind        Kind   `json:"kind"`
	}
)

var (
	ErrValidationRejected = errors.New("validation rejected")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidDate        = errors.New("invalid date")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrRangeInverted      = errors.New("range end precedes start")
	ErrMovementNotFound   = errors.New("movement not found")
)

// NewID returns a fresh movement identifier.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day of t, keeping its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal reports whether both dates are the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseKind accepts the english and spanish names of both kinds.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "ingreso", "ingresos":
		return Income, nil
	case "expense", "egreso", "egresos", "gasto":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// NewMovement builds a movement with a fresh id.
func NewMovement(kind Kind, date Date, description string, amount Money) Movement {
	return Movement{
		ID:          NewID(),
		Date:        date,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Kind:        kind,
	}
}

// Validate checks the rules a movement must satisfy to enter the ledger.
// Every failure wraps ErrValidationRejected.
func (m Movement) Validate() error {
	if err := m.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationRejected, err)
	}
	if strings.TrimSpace(m.Description) == "" {
		return fmt.Errorf("%w: %w", ErrValidationRejected, ErrEmptyDescription)
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("%w: %w", ErrValidationRejected, ErrInvalidAmount)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %w", ErrValidationRejected, ErrInvalidKind)
	}
	return nil
}

// Signed returns the amount with the sign of its effect on the balance.
func (m Movement) Signed() Money {
	if m.Kind == Expense {
		return m.Amount.Neg()
	}
	return m.Amount
}

// OnDate reports whether the movement belongs to day d.
func (m Movement) OnDate(d Date) bool {
	return m.Date.Equal(d)
}
