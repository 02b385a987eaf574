package models

import (
	"strings"
	"time"
)

// ExportFormat is the file type of a cohort download.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ParseExportFormat normalizes a requested format; ok is false for
// unsupported values.
func ParseExportFormat(raw string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case ExportCSV, "":
		return ExportCSV, true
	case ExportPDF:
		return ExportPDF, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// ExportLink is a signed, expiring download of a rendered cohort table.
type ExportLink struct {
	URL       string       `json:"url"`
	Filename  string       `json:"filename"`
	Format    ExportFormat `json:"format"`
	ExpiresAt time.Time    `json:"expires_at"`
}
