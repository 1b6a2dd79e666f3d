// Package export renders expense lists as CSV, Excel and PDF documents.
package export

import (
	"fmt"
	"io"
	"strings"

	"spendwise/internal/core"
)

type Format string

const (
	CSV   Format = "csv"
	Excel Format = "excel"
	PDF   Format = "pdf"
)

// ParseFormat resolves a format name as used in export URLs.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case CSV, Excel, PDF:
		return f, nil
	}
	return "", &core.Error{Kind: core.ErrNotFound, Message: fmt.Sprintf("Unknown export format %q", s)}
}

// Filename is the attachment name offered to clients.
func (f Format) Filename() string {
	switch f {
	case Excel:
		return "expenses.xlsx"
	case PDF:
		return "expenses.pdf"
	default:
		return "expenses.csv"
	}
}

func (f Format) ContentType() string {
	switch f {
	case Excel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Write renders expenses in format f. owner names the report in PDF output.
func Write(w io.Writer, f Format, owner string, expenses []core.Expense) error {
	switch f {
	case CSV:
		return WriteCSV(w, expenses)
	case Excel:
		return WriteExcel(w, expenses)
	case PDF:
		return WritePDF(w, owner, expenses)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func notes(e core.Expense) string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
