package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
)

type ExpenseStore struct {
	db database.Querier
}

func NewExpenseStore(db database.Querier) *ExpenseStore {
	return &ExpenseStore{db: db}
}

const expenseCols = `id, name, amount, created_at`

// Create inserts an expense. amount must already be a two-decimal string.
func (s *ExpenseStore) Create(ctx context.Context, name, amount string) (*model.Expense, error) {
	e, err := get[model.Expense](ctx, s.db,
		`INSERT INTO expenses (name, amount, created_at) VALUES (?, ?, ?) RETURNING `+expenseCols,
		name, amount, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (s *ExpenseStore) GetByID(ctx context.Context, id int64) (*model.Expense, error) {
	e, err := get[model.Expense](ctx, s.db, `SELECT `+expenseCols+` FROM expenses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// List returns every expense, newest first.
func (s *ExpenseStore) List(ctx context.Context) ([]model.Expense, error) {
	expenses, err := list[model.Expense](ctx, s.db,
		`SELECT `+expenseCols+` FROM expenses ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Delete removes expense id and reports whether it existed.
func (s *ExpenseStore) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, s.db, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	return n > 0, nil
}
