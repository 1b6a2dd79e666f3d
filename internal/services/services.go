// Package services implements the account, resource, dashboard and export
// operations on top of the storage ports.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

const publishTimeout = 5 * time.Second

// Publisher delivers domain events. *amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.Event) error
}

// Deps are the collaborators shared by all services. Publisher and Metrics
// are optional.
type Deps struct {
	Store     storage.Store
	Tokens    *auth.TokenIssuer
	Publisher Publisher
	Metrics   *metrics.Metrics
}

// Services bundles one instance of every service over the same store.
type Services struct {
	Auth       *AuthService
	Categories *CategoryService
	Expenses   *ExpenseService
	Budgets    *BudgetService
	Recurring  *RecurringService
	Dashboard  *DashboardService
	Export     *ExportService
}

func New(d Deps) *Services {
	ev := events{publisher: d.Publisher, metrics: d.Metrics}
	return &Services{
		Auth:       NewAuthService(d.Store, d.Tokens, ev, d.Metrics),
		Categories: NewCategoryService(d.Store, ev),
		Expenses:   NewExpenseService(d.Store, ev, d.Metrics),
		Budgets:    NewBudgetService(d.Store, d.Store, ev),
		Recurring:  NewRecurringService(d.Store, ev),
		Dashboard:  NewDashboardService(d.Store),
		Export:     NewExportService(d.Store, d.Store, d.Metrics),
	}
}

// events publishes domain events on a best-effort basis: failures are
// logged and counted, never returned.
type events struct {
	publisher Publisher
	metrics   *metrics.Metrics
}

func (e events) emit(ctx context.Context, eventType, userID, entityID string) {
	if e.publisher == nil {
		return
	}
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)

	// The request may finish before the broker answers.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.PublishEvent(pubCtx, amqp.NewEvent(eventType, userID, entityID)); err != nil {
		e.metrics.EventPublished(metrics.OutcomeFailure)
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) || errors.Is(err, amqp.ErrNotConnected) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "Failed to publish domain event",
			applog.FieldEventType, eventType,
			applog.FieldUserID, userID,
			applog.FieldEntityID, entityID,
			applog.FieldError, err)
		return
	}
	e.metrics.EventPublished(metrics.OutcomeSuccess)
	logger.DebugContext(ctx, "Domain event published",
		applog.FieldEventType, eventType,
		applog.FieldEntityID, entityID)
}

// notFoundAs replaces a storage not-found error with a resource-specific
// one and leaves other errors wrapped with op.
func notFoundAs(err error, nf error, op string) error {
	if errors.Is(err, core.ErrNotFound) {
		return nf
	}
	return fmt.Errorf("%s: %w", op, err)
}
