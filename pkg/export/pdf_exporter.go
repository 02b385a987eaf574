package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RGB is a fill color.
type RGB struct{ R, G, B int }

// PDFExporter renders a Dataset as a single table. Highlight, when set,
// picks a background for a row.
type PDFExporter struct {
	Highlight func(row []string) (RGB, bool)
	Widths    []float64
}

// NewPDFExporter constructs a PDF exporter with equal column widths.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const pageWidth = 190.0

// Render creates an A4 document with the title, subtitle and table.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(data.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	widths := e.columnWidths(len(data.Headers))
	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(22, 163, 74)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		fill := false
		if e.Highlight != nil {
			if color, ok := e.Highlight(row); ok {
				pdf.SetFillColor(color.R, color.G, color.B)
				fill = true
			}
		}
		for i := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(data.cell(row, i)), "1", 0, "", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(n int) []float64 {
	if len(e.Widths) == n {
		return e.Widths
	}
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = pageWidth / float64(n)
	}
	return widths
}
