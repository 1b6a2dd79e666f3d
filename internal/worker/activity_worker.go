// Package worker consumes domain events and turns them into an activity
// log.
package worker

import (
	"context"
	"errors"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

// ExpenseReader is the part of the store the worker reads from.
type ExpenseReader interface {
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
}

// ActivityWorker writes one log line per domain event. Expense events are
// enriched with the current state of the expense when it still exists.
type ActivityWorker struct {
	expenses ExpenseReader
	logger   *applog.Logger
}

func NewActivityWorker(expenses ExpenseReader, logger *applog.Logger) *ActivityWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ActivityWorker{
		expenses: expenses,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent records ev. A returned error asks the consumer to redeliver,
// so only transient store failures are reported.
func (w *ActivityWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	fields := applog.NewFields().
		WithUser(ev.UserID)
	fields[applog.FieldEventType] = ev.Type
	fields[applog.FieldEntityID] = ev.EntityID
	fields["event_id"] = ev.ID
	fields["event_time"] = ev.Timestamp

	switch ev.Type {
	case amqp.ExpenseCreated, amqp.ExpenseUpdated:
		if w.expenses == nil {
			break
		}
		e, err := w.expenses.GetExpense(ctx, ev.UserID, ev.EntityID)
		switch {
		case err == nil:
			fields.WithExpense(e.ID, e.Category, e.Amount.Cents)
		case errors.Is(err, core.ErrNotFound):
			// Deleted before we got here; the delete event follows.
			fields["stale"] = true
		default:
			return fmt.Errorf("load expense %s: %w", ev.EntityID, err)
		}
	case amqp.UserRegistered, amqp.ExpenseDeleted,
		amqp.CategoryCreated, amqp.CategoryDeleted,
		amqp.BudgetUpserted,
		amqp.RecurringCreated, amqp.RecurringDeleted:
	default:
		w.logger.WarnContext(ctx, "Unknown event type, skipping", fields.ToSlice()...)
		return nil
	}

	w.logger.InfoContext(ctx, "Activity", fields.ToSlice()...)
	return nil
}
