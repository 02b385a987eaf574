package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
	"github.com/noah-isme/aprendices-roster/pkg/export"
	"github.com/noah-isme/aprendices-roster/pkg/storage"
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	DownloadPath string
	ResultTTL    time.Duration
}

// ExportService renders cohort tables to files and hands out signed links.
type ExportService struct {
	storage fileStorage
	signer  *storage.SignedURLSigner
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers get the
// defaults used for cohort tables.
func NewExportService(files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/exports/download"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	if csv == nil {
		csv = &export.CSVExporter{Delimiter: ';', BOM: true}
	}
	if pdf == nil {
		pdf = &export.PDFExporter{Highlight: statusFill, Widths: []float64{35, 70, 35, 50}}
	}
	return &ExportService{storage: files, signer: signer, csv: csv, pdf: pdf, logger: logger, cfg: cfg, now: time.Now}
}

// ExportCohort renders the records of one cohort and returns a download link.
func (s *ExportService) ExportCohort(ctx context.Context, code string, records []models.Record, rawFormat string) (*models.ExportLink, error) {
	code = strings.TrimSpace(code)
	format, ok := models.ParseExportFormat(rawFormat)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("formato no soportado: %s", rawFormat))
	}
	if code == "" || len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, MessageNoEnrollees)
	}

	dataset := cohortDataset(code, records)
	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ExportPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	stamp := s.now().UTC().Format("20060102_150405")
	name := path.Join("cohorts", fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(code), stamp, uuid.NewString()[:8], format))
	stored, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	filename := fmt.Sprintf("ficha_%s.%s", sanitizeFilename(code), format)
	token, grant, err := s.signer.Sign(filename, stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	s.logger.Info("cohort exported",
		zap.String("cohort", code),
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
		zap.Int("bytes", len(payload)))

	return &models.ExportLink{
		URL:       s.cfg.DownloadPath + "?token=" + url.QueryEscape(token),
		Filename:  filename,
		Format:    format,
		ExpiresAt: grant.ExpiresAt.UTC(),
	}, nil
}

// Open validates a download token and opens the file it grants.
func (s *ExportService) Open(token string) (*os.File, storage.Grant, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "el enlace de descarga expiró")
		}
		return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "enlace de descarga inválido")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "archivo no encontrado")
	}
	return file, grant, nil
}

// Cleanup removes files older than the link lifetime.
func (s *ExportService) Cleanup(ctx context.Context) ([]string, error) {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func cohortDataset(code string, records []models.Record) export.Dataset {
	first := records[0]
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{record.DocumentID, record.FullName, record.Status, record.ProgramName})
	}
	return export.Dataset{
		Title:    "Ficha " + code,
		Subtitle: fmt.Sprintf("%s - %s (%d aprendices)", first.ProgramName, first.FormationLevel, len(records)),
		Headers:  []string{"Documento", "Nombre", "Estado", "Programa"},
		Rows:     rows,
	}
}

var rowFills = map[string]export.RGB{
	"bg-red-100 font-bold text-red-700": {R: 254, G: 226, B: 226},
	"bg-orange-100 text-orange-700":     {R: 255, G: 237, B: 213},
	"bg-green-100 text-green-700":       {R: 220, G: 252, B: 231},
}

func statusFill(row []string) (export.RGB, bool) {
	if len(row) < 3 {
		return export.RGB{}, false
	}
	rowClass, _ := models.StatusStyle(row[2])
	fill, ok := rowFills[rowClass]
	return fill, ok
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "?", "", "&", "")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}
