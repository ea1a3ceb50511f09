// Package expense is the expense ledger: a name and a two-decimal amount.
package expense

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/dukerupert/homewise/internal/validate"
	"github.com/shopspring/decimal"
)

// maxAmount is the first value that no longer fits DECIMAL(12,2).
var maxAmount = decimal.New(1, 10)

// CreateInput accepts the amount as a JSON number or a numeric string.
type CreateInput struct {
	Name   string           `json:"name" validate:"required,min=3,max=128"`
	Amount *decimal.Decimal `json:"amount"`
}

type Service struct {
	expenses *store.ExpenseStore
	logger   *slog.Logger
}

func NewService(db database.Querier, logger *slog.Logger) *Service {
	return &Service{expenses: store.NewExpenseStore(db), logger: logger}
}

// List returns all expenses, newest first.
func (s *Service) List(ctx context.Context) ([]model.Expense, error) {
	expenses, err := s.expenses.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list expenses", err)
	}
	return expenses, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Expense, error) {
	e, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get expense", err)
	}
	if e == nil {
		return nil, apperr.NotFound("expense not found")
	}
	return e, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Expense, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	e, err := s.expenses.Create(ctx, in.Name, amount)
	if err != nil {
		return nil, apperr.Internal("create expense", err)
	}
	if e == nil {
		return nil, apperr.Internal("create expense", nil)
	}
	s.logger.Info("expense created", "expense_id", e.ID, "amount", e.Amount)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.expenses.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("delete expense", err)
	}
	if !ok {
		return apperr.NotFound("expense not found")
	}
	s.logger.Info("expense deleted", "expense_id", id)
	return nil
}

// normalizeAmount rounds to cents and renders the fixed two-decimal form,
// e.g. 12.5 becomes "12.50".
func normalizeAmount(d *decimal.Decimal) (string, error) {
	if d == nil {
		return "", apperr.Invalid("amount", "invalid_type", "amount is required")
	}
	rounded := d.Round(2)
	if rounded.IsZero() {
		return "", apperr.Invalid("amount", "too_small", "amount must not be zero")
	}
	if rounded.Abs().GreaterThanOrEqual(maxAmount) {
		return "", apperr.Invalid("amount", "too_big", "amount must be less than 10000000000")
	}
	return rounded.StringFixed(2), nil
}
