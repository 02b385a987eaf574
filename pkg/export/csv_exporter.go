package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders a Dataset as CSV. Spreadsheet tools in es-CO locales
// expect a semicolon separator and a BOM to detect UTF-8.
type CSVExporter struct {
	Delimiter rune
	BOM       bool
}

// NewCSVExporter builds a comma separated exporter without BOM.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Delimiter: ','}
}

// Render produces the CSV bytes. Title and Subtitle are not written.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.BOM {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	if e.Delimiter != 0 {
		writer.Comma = e.Delimiter
	}
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i := range data.Headers {
			record[i] = data.cell(row, i)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
