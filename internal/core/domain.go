package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Expense is a stored expense record. ID is assigned by storage on insert.
	Expense struct {
		ID       int64
		Category string
		Amount   decimal.Decimal
		Date     string
	}

	// NewExpense carries validated input for an insert.
	NewExpense struct {
		Category string
		Amount   decimal.Decimal
		Date     string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidID     = errors.New("invalid expense id")
)

// ParseNewExpense coerces raw form values into a NewExpense.
//
// Only the amount is type-checked: it must be a decimal number, with either a dot
// or a comma as separator. Category and date are stored exactly as given.
func ParseNewExpense(category, amount, date string) (NewExpense, error) {
	amt, err := ParseAmount(amount)
	if err != nil {
		return NewExpense{}, err
	}
	return NewExpense{
		Category: category,
		Amount:   amt,
		Date:     date,
	}, nil
}

// ParseAmount parses a decimal amount such as "12.50", "12,5" or "-3".
// Values too large to store as a float64 are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
