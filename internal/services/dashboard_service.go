package services

import (
	"context"
	"fmt"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type DashboardService struct {
	expenses storage.ExpenseStore
}

func NewDashboardService(expenses storage.ExpenseStore) *DashboardService {
	return &DashboardService{expenses: expenses}
}

// Stats aggregates all of the user's expenses.
func (s *DashboardService) Stats(ctx context.Context, userID string) (core.DashboardStats, error) {
	expenses, err := s.expenses.ListExpenses(ctx, userID, storage.MaxExpenses)
	if err != nil {
		return core.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return core.ComputeStats(expenses), nil
}
