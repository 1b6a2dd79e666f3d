package core

// DashboardStats is the dashboard aggregate over one user's expenses.
type DashboardStats struct {
	TotalExpenses     Money            `json:"total_expenses"`
	ByCategory        map[string]Money `json:"by_category"`
	ByPaymentMethod   map[string]Money `json:"by_payment_method"`
	MonthlyTrend      map[string]Money `json:"monthly_trend"`
	TotalTransactions int              `json:"total_transactions"`
}

// MonthKey returns the "YYYY-MM" bucket of an ISO date string. Shorter
// strings are used as-is.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// ComputeStats folds expenses into dashboard totals in a single pass.
// The result does not depend on input order.
func ComputeStats(expenses []Expense) DashboardStats {
	s := DashboardStats{
		ByCategory:      make(map[string]Money),
		ByPaymentMethod: make(map[string]Money),
		MonthlyTrend:    make(map[string]Money),
	}
	for _, e := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		s.ByPaymentMethod[e.PaymentMethod] = s.ByPaymentMethod[e.PaymentMethod].Add(e.Amount)
		month := MonthKey(e.Date)
		s.MonthlyTrend[month] = s.MonthlyTrend[month].Add(e.Amount)
	}
	s.TotalTransactions = len(expenses)
	return s
}

// SumAmounts totals the amounts of expenses.
func SumAmounts(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
