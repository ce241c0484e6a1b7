package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	d := DateOf(time.Date(2024, 1, 1, 23, 30, 0, 0, lima))
	if !d.Equal(NewDate(2024, 1, 1)) {
		t.Fatalf("expected 2024-01-01, got %s", d)
	}
	if d.Hour() != 0 || d.Location() != time.UTC {
		t.Fatalf("expected midnight UTC, got %v", d.Time)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("got %s", d)
	}
	if _, err := ParseDate("29/02/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := d.UnmarshalJSON([]byte(`"2024-01-02"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := d.MarshalJSON()
	if string(b) != `"2024-01-02"` {
		t.Fatalf("got %s", b)
	}
	if err := d.UnmarshalJSON([]byte(`null`)); err != nil || !d.IsZero() {
		t.Fatalf("null should give zero date, got %v (err=%v)", d, err)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"income": Income, "Ingreso": Income, "EXPENSE": Expense, "egreso": Expense}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestMovementValidate(t *testing.T) {
	good := NewMovement(Income, NewDate(2025, 1, 1), " sale ", MoneyFromCents(100))
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if good.ID == "" || good.Description != "sale" {
		t.Fatalf("expected fresh id and trimmed description, got %+v", good)
	}

	long := NewMovement(Expense, NewDate(2025, 1, 1), strings.Repeat("reparación de cañería ", 20), MoneyFromCents(100))
	if err := long.Validate(); err != nil {
		t.Fatalf("long accented description should be accepted, got %v", err)
	}

	bads := []Movement{
		{ID: "a", Date: Date{}, Description: "a", Amount: MoneyFromCents(1), Kind: Income},
		{ID: "b", Date: NewDate(2025, 1, 1), Description: "  ", Amount: MoneyFromCents(1), Kind: Income},
		{ID: "c", Date: NewDate(2025, 1, 1), Description: "a", Amount: MoneyFromCents(0), Kind: Income},
		{ID: "d", Date: NewDate(2025, 1, 1), Description: "a", Amount: MoneyFromCents(-5), Kind: Expense},
		{ID: "e", Date: NewDate(2025, 1, 1), Description: "a", Amount: MoneyFromCents(1), Kind: "transfer"},
	}
	for i, m := range bads {
		err := m.Validate()
		if !errors.Is(err, ErrValidationRejected) {
			t.Fatalf("case %d expected ErrValidationRejected, got %v", i, err)
		}
	}
}

func TestTotalsOf(t *testing.T) {
	d := NewDate(2024, 1, 1)
	ms := []Movement{
		NewMovement(Income, d, "a", MoneyFromCents(10000)),
		NewMovement(Expense, d, "b", MoneyFromCents(3000)),
		NewMovement(Income, d.AddDays(1), "c", MoneyFromCents(5000)),
	}
	tot := TotalsOf(ms)
	if tot.Income.String() != "150.00" || tot.Expense.String() != "30.00" || tot.Balance.String() != "120.00" {
		t.Fatalf("unexpected totals %+v", tot)
	}
	if Sum(ms).String() != "180.00" {
		t.Fatalf("unexpected sum %s", Sum(ms))
	}
	if ms[1].Signed().String() != "-30.00" {
		t.Fatalf("expense should be negative when signed")
	}
}
