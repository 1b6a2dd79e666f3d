package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"spendwise/internal/core"
)

var csvHeader = []string{"date", "category", "amount", "payment_method", "notes"}

// WriteCSV writes a header row followed by one row per expense.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		row := []string{e.Date, e.Category, e.Amount.Decimal().String(), e.PaymentMethod, notes(e)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
