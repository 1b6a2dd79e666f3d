package services

import (
	"context"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/storage"
)

// RecurringInput is the payload for a recurring expense template. A missing
// is_active means active.
type RecurringInput struct {
	Category      string         `json:"category"`
	Amount        *core.Money    `json:"amount"`
	Frequency     core.Frequency `json:"frequency"`
	NextDate      string         `json:"next_date"`
	PaymentMethod string         `json:"payment_method"`
	Notes         *string        `json:"notes"`
	IsActive      *bool          `json:"is_active"`
}

// RecurringService stores recurring expense templates. Nothing here
// advances next_date or materializes expenses.
type RecurringService struct {
	store  storage.RecurringStore
	events events
}

func NewRecurringService(store storage.RecurringStore, ev events) *RecurringService {
	return &RecurringService{store: store, events: ev}
}

func (s *RecurringService) Create(ctx context.Context, userID string, in RecurringInput) (core.RecurringExpense, error) {
	if in.Amount == nil {
		return core.RecurringExpense{}, core.Validationf("amount is required")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	r := core.RecurringExpense{
		ID:            core.NewID(),
		UserID:        userID,
		Category:      in.Category,
		Amount:        *in.Amount,
		Frequency:     in.Frequency,
		NextDate:      in.NextDate,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		IsActive:      active,
		CreatedAt:     core.Now(),
	}
	if err := r.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.store.CreateRecurring(ctx, r); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("save recurring expense: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentRecurring).InfoContext(ctx, "Recurring expense created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithUser(userID).
			WithExpense(r.ID, r.Category, r.Amount.Cents).
			ToSlice()...)
	s.events.emit(ctx, amqp.RecurringCreated, userID, r.ID)
	return r, nil
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringExpense, error) {
	items, err := s.store.ListRecurring(ctx, userID, storage.MaxRecurring)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return items, nil
}

func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteRecurring(ctx, userID, id); err != nil {
		return notFoundAs(err, core.ErrRecurringNotFound, "delete recurring expense")
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentRecurring).InfoContext(ctx, "Recurring expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldEntityID, id)
	s.events.emit(ctx, amqp.RecurringDeleted, userID, id)
	return nil
}
