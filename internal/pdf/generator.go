package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/dispatch-core/internal/model"
)

const fontName = "Helvetica"

type Generator struct {
	currency string
}

func NewGenerator(currency string) *Generator {
	if strings.TrimSpace(currency) == "" {
		currency = "BRL"
	}
	return &Generator{currency: currency}
}

func (g *Generator) Generate(receipt model.Receipt) ([]byte, error) {
	req := receipt.Request

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, "Service request receipt", "", 1, "C", false, 0, "")

	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Request %s", req.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s", formatDateTime(receipt.IssuedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Customer")
	field(pdf, tr, "Name", req.CustomerName)
	field(pdf, tr, "Contact", req.CustomerContact)
	field(pdf, tr, "Address", req.Address)
	if req.Notes != nil {
		field(pdf, tr, "Notes", *req.Notes)
	}
	pdf.Ln(2)

	section(pdf, "Status")
	field(pdf, tr, "Current", fmt.Sprintf("%s (%s)", req.Status, req.Status.Label()))
	field(pdf, tr, "Requested", formatDateTime(req.CreatedAt))
	if req.ProfessionalName != nil {
		field(pdf, tr, "Professional", *req.ProfessionalName)
	}
	if req.ClaimedAt != nil {
		field(pdf, tr, "Accepted", formatDateTime(*req.ClaimedAt))
	}
	pdf.Ln(2)

	section(pdf, "Price")
	widths := []float64{120, 60}
	drawTableRow(pdf, []string{"Item", "Amount, " + g.currency}, widths, true)
	drawTableRow(pdf, []string{tr(req.ServiceName), formatAmount(req.Price.Service)}, widths, false)
	drawTableRow(pdf, []string{"Travel", formatAmount(req.Price.Travel)}, widths, false)
	drawTableRow(pdf, []string{"Total", formatAmount(req.Price.Total)}, widths, true)

	pdf.Ln(4)
	pdf.SetFont(fontName, "", 9)
	pdf.MultiCell(0, 5, "Prices were fixed when the request was placed and do not follow later catalog changes.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func field(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont(fontName, "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("%s: %s", label, tr(safeValue(value))), "", "L", false)
}

func drawTableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02.01.2006 15:04 MST")
}
