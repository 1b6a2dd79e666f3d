package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"spendwise/internal/core"
)

// Layout in points on a Letter page, measured from the top-left corner.
const (
	marginLeft   = 50.0
	marginBottom = 50.0
	titleY       = 50.0
	headerY      = 100.0
	rowHeight    = 15.0
)

var pdfColumns = []struct {
	title string
	x     float64
}{
	{"Date", 50},
	{"Category", 150},
	{"Amount", 250},
	{"Payment", 350},
}

// compressPDF is switched off in tests so page content can be inspected.
var compressPDF = true

// WritePDF renders a paginated expense report titled after owner, closing
// with the total of all amounts.
func WritePDF(w io.Writer, owner string, expenses []core.Expense) error {
	pdf := buildPDF(owner, expenses)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func buildPDF(owner string, expenses []core.Expense) *fpdf.Fpdf {
	if owner == "" {
		owner = "User"
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(compressPDF)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(marginLeft, titleY, tr("Expense Report - "+owner))

	pdf.SetFont("Helvetica", "B", 10)
	for _, col := range pdfColumns {
		pdf.Text(col.x, headerY, col.title)
	}

	pdf.SetFont("Helvetica", "", 9)
	y := headerY + 20
	for _, e := range expenses {
		if y > pageHeight-marginBottom {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "", 9)
			y = titleY
		}
		cells := []string{
			truncate(e.Date, 10),
			truncate(e.Category, 15),
			"$" + e.Amount.String(),
			truncate(e.PaymentMethod, 15),
		}
		for i, col := range pdfColumns {
			pdf.Text(col.x, y, tr(cells[i]))
		}
		y += rowHeight
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(pdfColumns[2].x, y+20, "Total: $"+core.SumAmounts(expenses).String())
	return pdf
}
