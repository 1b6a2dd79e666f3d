package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"spendwise/internal/core"
)

const sheetName = "Expenses"

var excelHeader = []any{"Date", "Category", "Amount", "Payment Method", "Notes"}

// WriteExcel writes an OOXML workbook with a single "Expenses" sheet.
// Amounts are written as numeric cells.
func WriteExcel(w io.Writer, expenses []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", excelHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.Date, e.Category, e.Amount.Float(), e.PaymentMethod, notes(e)}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
