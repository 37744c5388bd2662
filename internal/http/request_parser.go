// Package http provides the HTTP server and handlers.
//
// This file turns raw form submissions into typed expense input, reporting
// problems as RequestError values that carry the HTTP status to answer with.

package http

import (
	"errors"
	"fmt"
	"net/http"

	"expensetracker/internal/core"
)

// Expense form field names.
const (
	FieldCategory = "category"
	FieldAmount   = "amount"
	FieldDate     = "date"
)

// RequestError is a client error with the status code it maps to.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseExpenseForm reads category, amount and date from a POSTed form.
//
// All three fields must be present. The amount must parse as a decimal number;
// category and date are free text.
func ParseExpenseForm(r *http.Request) (core.NewExpense, error) {
	if err := r.ParseForm(); err != nil {
		return core.NewExpense{}, &RequestError{Status: http.StatusBadRequest, Message: "Malformed form data.", Err: err}
	}

	for _, key := range []string{FieldCategory, FieldAmount, FieldDate} {
		if _, ok := r.PostForm[key]; !ok {
			return core.NewExpense{}, &RequestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("Missing form field %q.", key),
			}
		}
	}

	input, err := core.ParseNewExpense(
		r.PostForm.Get(FieldCategory),
		r.PostForm.Get(FieldAmount),
		r.PostForm.Get(FieldDate),
	)
	if errors.Is(err, core.ErrInvalidAmount) {
		return core.NewExpense{}, &RequestError{
			Status:  http.StatusUnprocessableEntity,
			Message: "Amount must be a number.",
			Err:     err,
		}
	}
	if err != nil {
		return core.NewExpense{}, &RequestError{Status: http.StatusBadRequest, Message: "Invalid expense.", Err: err}
	}
	return input, nil
}
