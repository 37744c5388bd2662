package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type expenseRow struct {
	ID       int64
	Category string
	Amount   string
	Date     string
}

type totalRow struct {
	Category string
	Total    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	dash, err := s.expenses.Dashboard(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load dashboard",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not load expenses.")
		return
	}

	chartJSON, err := json.Marshal(dash.Chart)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode chart data", applog.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not prepare chart.")
		return
	}

	data := struct {
		Today     string
		Expenses  []expenseRow
		Totals    []totalRow
		ChartJSON string
	}{
		Today:     time.Now().Format("2006-01-02"),
		Expenses:  make([]expenseRow, 0, len(dash.Expenses)),
		ChartJSON: string(chartJSON),
	}
	for _, e := range dash.Expenses {
		data.Expenses = append(data.Expenses, expenseRow{
			ID:       e.ID,
			Category: e.Category,
			Amount:   formatAmount(e.Amount),
			Date:     e.Date,
		})
	}
	for _, t := range dash.Totals {
		data.Totals = append(data.Totals, totalRow{Category: t.Category, Total: formatAmount(t.Total)})
	}

	s.render(w, r, http.StatusOK, "index.html", data)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	input, err := ParseExpenseForm(r)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			logger.WarnContext(ctx, "Rejected expense input",
				applog.FieldOperation, applog.OpParse,
				applog.FieldError, err)
			s.renderError(w, r, reqErr.Status, reqErr.Message)
			return
		}
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}

	id, err := s.expenses.AddExpense(ctx, input)
	if err != nil {
		fields := applog.NewFields().
			WithExpense(0, input.Category, input.Amount.String(), input.Date).
			WithOperation(applog.OpCreate).
			WithError(err)
		logger.ErrorContext(ctx, "Failed to save expense", fields.ToSlice()...)
		s.renderError(w, r, http.StatusInternalServerError, "Error saving expense.")
		return
	}

	fields := applog.NewFields().
		WithExpense(id, input.Category, input.Amount.String(), input.Date).
		WithOperation(applog.OpCreate)
	logger.InfoContext(ctx, "Expense created", fields.ToSlice()...)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	// Non-integer or non-positive ids do not match the route.
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.renderError(w, r, http.StatusNotFound, "Page not found.")
		return
	}

	removed, err := s.expenses.DeleteExpense(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete expense",
			applog.FieldExpenseID, id,
			applog.FieldOperation, applog.OpDelete,
			applog.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Error deleting expense.")
		return
	}

	logger.InfoContext(ctx, "Expense delete handled",
		applog.FieldExpenseID, id,
		applog.FieldOperation, applog.OpDelete,
		"removed", removed)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAPIExpenses returns [id, category, amount, date] tuples, newest date first.
func (s *Server) handleAPIExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenses, err := s.expenses.ListExpenses(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list expenses",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load expenses"})
		return
	}

	writeJSON(w, http.StatusOK, expenseTuples(expenses))
}

func expenseTuples(expenses []core.Expense) [][]any {
	out := make([][]any, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, []any{e.ID, e.Category, e.Amount.InexactFloat64(), e.Date})
	}
	return out
}
