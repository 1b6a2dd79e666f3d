package services

import (
	"context"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

// ExpenseInput is the payload for a new expense. Amount is a pointer so a
// missing amount can be told apart from zero.
type ExpenseInput struct {
	Category      string      `json:"category"`
	Amount        *core.Money `json:"amount"`
	Date          string      `json:"date"`
	PaymentMethod string      `json:"payment_method"`
	Notes         *string     `json:"notes"`
	ReceiptURL    *string     `json:"receipt_url"`
}

// ExpenseService manages a user's expenses.
type ExpenseService struct {
	store   storage.ExpenseStore
	events  events
	metrics *metrics.Metrics
}

func NewExpenseService(store storage.ExpenseStore, ev events, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{store: store, events: ev, metrics: m}
}

func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	if in.Amount == nil {
		return core.Expense{}, core.Validationf("amount is required")
	}
	e := core.Expense{
		ID:            core.NewID(),
		UserID:        userID,
		Category:      in.Category,
		Amount:        *in.Amount,
		Date:          in.Date,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		ReceiptURL:    in.ReceiptURL,
		CreatedAt:     core.Now(),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.metrics.ExpenseCreated()
	applog.FromContext(ctx).WithComponent(applog.ComponentExpense).InfoContext(ctx, "Expense created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithUser(userID).
			WithExpense(e.ID, e.Category, e.Amount.Cents).
			ToSlice()...)
	s.events.emit(ctx, amqp.ExpenseCreated, userID, e.ID)
	return e, nil
}

// List returns up to storage.MaxExpenses expenses, oldest first.
func (s *ExpenseService) List(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID, storage.MaxExpenses)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, notFoundAs(err, core.ErrExpenseNotFound, "get expense")
	}
	return e, nil
}

// Update overwrites only the fields set in patch. Applying the same patch
// twice leaves the expense unchanged.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	e, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	patch.Apply(&e)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, notFoundAs(err, core.ErrExpenseNotFound, "update expense")
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentExpense).InfoContext(ctx, "Expense updated",
		applog.NewFields().
			WithOperation(applog.OpUpdate).
			WithUser(userID).
			WithExpense(e.ID, e.Category, e.Amount.Cents).
			ToSlice()...)
	s.events.emit(ctx, amqp.ExpenseUpdated, userID, e.ID)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return notFoundAs(err, core.ErrExpenseNotFound, "delete expense")
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentExpense).InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldEntityID, id)
	s.events.emit(ctx, amqp.ExpenseDeleted, userID, id)
	return nil
}
