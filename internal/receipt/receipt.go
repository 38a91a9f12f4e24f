package receipt

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"foh-order-service/internal/store"

	"github.com/phpdave11/gofpdf"
)

// Document is the printable view of a sale: either a finalized
// transaction or an in-progress order that already has prices
// attached. Line totals and the grand total use the same figures
// checkout used, so the receipt cannot drift from the ledger.
type Document struct {
	TableLabel  string
	Items       []store.TransactionItem
	TotalAmount float64
	IssuedAt    time.Time
}

func FromTransaction(t store.Transaction) Document {
	issued := time.Now()
	if ts, err := time.Parse(time.RFC3339, t.Timestamp); err == nil {
		issued = ts
	}
	return Document{
		TableLabel:  t.TableLabel,
		Items:       t.Items,
		TotalAmount: t.TotalAmount,
		IssuedAt:    issued,
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeLabel(value string) string {
	clean := unsafeFilenameChars.ReplaceAllString(value, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		clean = "table"
	}
	return clean
}

func (d Document) Filename(ext string) string {
	return fmt.Sprintf("invoice_%s_%s.%s",
		sanitizeLabel(d.TableLabel),
		d.IssuedAt.Format("20060102_150405"),
		ext)
}

// Text renders the plain invoice the billing screen downloads: a
// header, one line per item with quantity and line total, and the
// grand total.
func (d Document) Text() string {
	var b strings.Builder
	b.WriteString("RESTAURANT BILL\n")
	b.WriteString(fmt.Sprintf("Table: %s\n", d.TableLabel))
	b.WriteString(fmt.Sprintf("Date: %s\n", d.IssuedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, item := range d.Items {
		lineTotal := item.Price * float64(item.Quantity)
		b.WriteString(fmt.Sprintf("%-24s x%-3d %10.2f\n", item.DishName, item.Quantity, lineTotal))
	}
	b.WriteString(strings.Repeat("-", 40) + "\n")
	b.WriteString(fmt.Sprintf("%-28s %11.2f\n", "TOTAL", d.TotalAmount))
	return b.String()
}

func (d Document) PDF() (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "RESTAURANT BILL", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Table %s", d.TableLabel), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, d.IssuedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range d.Items {
		lineTotal := item.Price * float64(item.Quantity)
		pdf.CellFormat(120, 5, fmt.Sprintf("%dx %s", item.Quantity, item.DishName), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("%.2f", lineTotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(120, 6, "TOTAL", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("%.2f", d.TotalAmount), "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
