package services

import (
	"context"
	"fmt"
	"io"

	"spendwise/internal/core"
	"spendwise/internal/export"
	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

type ExportService struct {
	expenses storage.ExpenseStore
	users    storage.UserStore
	metrics  *metrics.Metrics
}

func NewExportService(expenses storage.ExpenseStore, users storage.UserStore, m *metrics.Metrics) *ExportService {
	return &ExportService{expenses: expenses, users: users, metrics: m}
}

// Export writes all of the user's expenses to w in format f.
func (s *ExportService) Export(ctx context.Context, userID string, f export.Format, w io.Writer) error {
	expenses, err := s.expenses.ListExpenses(ctx, userID, storage.MaxExpenses)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var owner string
	if f == export.PDF {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return notFoundAs(err, core.ErrUserNotFound, "export")
		}
		owner = user.Username
	}

	if err := export.Write(w, f, owner, expenses); err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}

	s.metrics.Exported(string(f))
	applog.FromContext(ctx).WithComponent(applog.ComponentExport).InfoContext(ctx, "Expenses exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldUserID, userID,
		applog.FieldExportFormat, string(f),
		applog.FieldRows, len(expenses))
	return nil
}
