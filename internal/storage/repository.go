package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"

	_ "modernc.org/sqlite"
)

const (
	listExpensesQuery  = `SELECT id, category, amount, date FROM expenses ORDER BY date DESC, id DESC`
	insertExpenseQuery = `INSERT INTO expenses (category, amount, date) VALUES (?, ?, ?)`
	deleteExpenseQuery = `DELETE FROM expenses WHERE id = ?`
)

// SQLiteRepository owns the single shared handle to the expenses database.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (or creates) the database at dbPath and applies migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	existed := true
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		existed = false
	}

	dsn := buildDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: writes from this process never contend for the file lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if existed {
		slog.Info("Opened existing expense database", "path", dbPath)
	} else {
		slog.Info("Created expense database", "path", dbPath)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func buildDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including on panic.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListExpenses returns every expense ordered by the date column descending.
// Dates are compared as strings, so only zero-padded ISO dates sort chronologically.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, listExpensesQuery)
		if err != nil {
			return fmt.Errorf("query expenses: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id       int64
				category sql.NullString
				amount   sql.NullFloat64
				date     sql.NullString
			)
			if err := rows.Scan(&id, &category, &amount, &date); err != nil {
				return fmt.Errorf("scan expense: %w", err)
			}
			expenses = append(expenses, core.Expense{
				ID:       id,
				Category: category.String,
				Amount:   amountFromColumn(ctx, id, amount),
				Date:     date.String,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// amountFromColumn converts a stored REAL to a decimal. NULL and non-finite
// values (possible in files written by other tools) read as zero.
func amountFromColumn(ctx context.Context, id int64, amount sql.NullFloat64) decimal.Decimal {
	if !amount.Valid {
		return decimal.Zero
	}
	if math.IsInf(amount.Float64, 0) || math.IsNaN(amount.Float64) {
		slog.WarnContext(ctx, "Non-finite amount stored, reading as zero",
			"id", id,
			"amount", amount.Float64)
		return decimal.Zero
	}
	return decimal.NewFromFloat(amount.Float64)
}

// CreateExpense inserts one expense and returns the id assigned by SQLite.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.NewExpense) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertExpenseQuery, e.Category, e.Amount.InexactFloat64(), e.Date)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"category", e.Category,
		"amount", e.Amount.String(),
		"date", e.Date)

	return id, nil
}

// DeleteExpense removes the expense with the given id. A missing id is not an
// error; the returned bool reports whether a row was removed.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	var affected int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteExpenseQuery, id)
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read affected rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
