package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spendwise/internal/core"
)

func strPtr(s string) *string { return &s }

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: "1", Category: "Food", Amount: core.Money{Cents: 1000}, Date: "2025-01-03", PaymentMethod: "card", Notes: strPtr("lunch, with team")},
		{ID: "2", Category: "Food", Amount: core.Money{Cents: 550}, Date: "2025-01-04", PaymentMethod: "cash"},
		{ID: "3", Category: "Bills", Amount: core.Money{Cents: 2000}, Date: "2025-02-01T08:00:00", PaymentMethod: "bank transfer"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		want     Format
		filename string
		ctype    string
		wantErr  bool
	}{
		{"csv", CSV, "expenses.csv", "text/csv", false},
		{"excel", Excel, "expenses.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", false},
		{"PDF", PDF, "expenses.pdf", "application/pdf", false},
		{"xml", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.filename, got.Filename())
			assert.Equal(t, tt.ctype, got.ContentType())
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleExpenses()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"date", "category", "amount", "payment_method", "notes"}, rows[0])
	assert.Equal(t, []string{"2025-01-03", "Food", "10", "card", "lunch, with team"}, rows[1])
	assert.Equal(t, []string{"2025-01-04", "Food", "5.5", "cash", ""}, rows[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "date,category,amount,payment_method,notes\n", buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, sampleExpenses()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Expenses"}, f.GetSheetList())
	rows, err := f.GetRows("Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Category", "Amount", "Payment Method", "Notes"}, rows[0])
	assert.Equal(t, "5.5", rows[2][2])

	typ, err := f.GetCellType("Expenses", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
}

func uncompressed(t *testing.T) {
	t.Helper()
	compressPDF = false
	t.Cleanup(func() { compressPDF = true })
}

func TestWritePDF(t *testing.T) {
	uncompressed(t)

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "alice", sampleExpenses()))
	out := buf.String()

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, out, "Expense Report - alice")
	assert.Contains(t, out, "Total: $35.50")
	assert.Contains(t, out, "(2025-02-01)")
	assert.Contains(t, out, "(bank transfer)")
}

func TestBuildPDFPaginates(t *testing.T) {
	uncompressed(t)

	expenses := make([]core.Expense, 120)
	for i := range expenses {
		expenses[i] = core.Expense{
			ID:            fmt.Sprint(i),
			Category:      "A very long category name",
			Amount:        core.Money{Cents: 100},
			Date:          "2025-03-01",
			PaymentMethod: "card",
		}
	}

	pdf := buildPDF("", expenses)
	require.NoError(t, pdf.Error())
	assert.Greater(t, pdf.PageCount(), 2)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	assert.Contains(t, buf.String(), "Expense Report - User")
	assert.Contains(t, buf.String(), "(A very long cat)")
	assert.Contains(t, buf.String(), "Total: $120.00")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "Caffè lat", truncate("Caffè latte", 9))
}
