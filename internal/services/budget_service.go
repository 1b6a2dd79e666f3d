package services

import (
	"context"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/storage"
)

type BudgetInput struct {
	Month int        `json:"month"`
	Year  int        `json:"year"`
	Limit core.Money `json:"limit"`
}

// BudgetService keeps one monthly budget per user and period.
type BudgetService struct {
	budgets storage.BudgetStore
	users   storage.UserStore
	events  events
}

func NewBudgetService(budgets storage.BudgetStore, users storage.UserStore, ev events) *BudgetService {
	return &BudgetService{budgets: budgets, users: users, events: ev}
}

// Upsert sets the limit for a period, creating the budget if needed. The
// currency is refreshed from the user's profile on every write.
func (s *BudgetService) Upsert(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	b := core.Budget{
		ID:        core.NewID(),
		UserID:    userID,
		Month:     in.Month,
		Year:      in.Year,
		Limit:     in.Limit,
		CreatedAt: core.Now(),
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.Budget{}, notFoundAs(err, core.ErrUserNotFound, "get user")
	}
	b.Currency = user.Currency

	stored, err := s.budgets.UpsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentBudget).InfoContext(ctx, "Budget saved",
		applog.FieldOperation, applog.OpUpsert,
		applog.FieldUserID, userID,
		applog.FieldMonth, stored.Month,
		applog.FieldYear, stored.Year,
		applog.FieldAmountCents, stored.Limit.Cents)
	s.events.emit(ctx, amqp.BudgetUpserted, userID, stored.ID)
	return stored, nil
}

func (s *BudgetService) Get(ctx context.Context, userID string, month, year int) (core.Budget, error) {
	if err := core.ValidatePeriod(month, year); err != nil {
		return core.Budget{}, err
	}
	b, err := s.budgets.GetBudget(ctx, userID, month, year)
	if err != nil {
		return core.Budget{}, notFoundAs(err, core.ErrBudgetNotFound, "get budget")
	}
	return b, nil
}
