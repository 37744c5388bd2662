package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"12.50", "12.5", true},
		{"12,50", "12.5", true},
		{" 2.25 ", "2.25", true},
		{"-3", "-3", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,234.5", "", false},
		{"", "", false},
		{"1e400", "", false},
		{"-1e400", "", false},
		{"1e300", "1e300", true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q: unexpected error %v", tc.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s", tc.in, tc.out, got)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseNewExpense(t *testing.T) {
	e, err := ParseNewExpense("  Food ", "10.5", " 2024-01-02 ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.Category != "  Food " || e.Date != " 2024-01-02 " {
		t.Fatalf("text fields must be kept verbatim: %+v", e)
	}
	if !e.Amount.Equal(decimal.NewFromFloat(10.5)) {
		t.Fatalf("unexpected amount %s", e.Amount)
	}

	// Free text is not validated beyond coercion.
	e, err = ParseNewExpense("", "1", "not a date")
	if err != nil || e.Category != "" || e.Date != "not a date" {
		t.Fatalf("expected free text accepted, got %+v err=%v", e, err)
	}

	if _, err := ParseNewExpense("Food", "ten", "2024-01-02"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
