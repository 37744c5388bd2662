package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
)

// Repository is the storage the service needs.
type Repository interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, e core.NewExpense) (int64, error)
	DeleteExpense(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher announces changes to expenses. It is optional.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
	Close() error
}

// Dashboard is everything the home page renders.
type Dashboard struct {
	Expenses []core.Expense
	Totals   []core.CategoryTotal
	Chart    core.ChartData
}

// ExpenseService is the application context handed to HTTP handlers.
type ExpenseService struct {
	storage   Repository
	publisher EventPublisher
}

func NewExpenseService(storage Repository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// ListExpenses returns all expenses, newest date first.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.storage.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Dashboard lists expenses and aggregates them by category for charting.
func (s *ExpenseService) Dashboard(ctx context.Context) (Dashboard, error) {
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	totals := core.AggregateByCategory(expenses)
	return Dashboard{
		Expenses: expenses,
		Totals:   totals,
		Chart:    core.BuildChartData(totals),
	}, nil
}

// AddExpense saves an expense and publishes a created event.
func (s *ExpenseService) AddExpense(ctx context.Context, e core.NewExpense) (int64, error) {
	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseCreatedEvent(id, e))
	return id, nil
}

// DeleteExpense removes an expense by id. Unknown ids are silently accepted.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, core.ErrInvalidID
	}
	removed, err := s.storage.DeleteExpense(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	if !removed {
		slog.DebugContext(ctx, "Delete requested for unknown expense", "id", id)
	}

	s.publish(ctx, amqp.NewExpenseDeletedEvent(id, removed))
	return removed, nil
}

// Ready reports whether the database answers.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// publish never fails the caller: the expense is already stored.
func (s *ExpenseService) publish(ctx context.Context, event *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", event.Type,
			"id", event.ID,
			"error", err)
	}
}

// Close closes both storage and the event publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
