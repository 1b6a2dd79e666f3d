// Package storage defines the persistence ports used by the services and
// the SQLite implementation of them.
package storage

import (
	"context"

	"spendwise/internal/core"
)

// Upper bounds on list reads.
const (
	MaxExpenses   = 10000
	MaxCategories = 1000
	MaxRecurring  = 1000
)

// UserStore persists accounts. CreateUserWithCategories writes the user and
// its seeded categories as one unit; a taken email yields core.ErrConflict.
type UserStore interface {
	CreateUserWithCategories(ctx context.Context, u core.User, cats []core.Category) error
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context, userID string, limit int) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error
}

// ExpenseStore lists expenses by created_at, then insertion order.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error)
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, userID, id string) error
}

// BudgetStore keeps at most one budget per (user, month, year).
// UpsertBudget keeps the stored id and created_at when the period exists.
type BudgetStore interface {
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, userID string, month, year int) (core.Budget, error)
}

type RecurringStore interface {
	CreateRecurring(ctx context.Context, r core.RecurringExpense) error
	ListRecurring(ctx context.Context, userID string, limit int) ([]core.RecurringExpense, error)
	DeleteRecurring(ctx context.Context, userID, id string) error
}

// Store is the full persistence surface. Lookups of absent or foreign
// records return an error wrapping core.ErrNotFound.
type Store interface {
	UserStore
	CategoryStore
	ExpenseStore
	BudgetStore
	RecurringStore
	Ping(ctx context.Context) error
	Close() error
}
