package repository

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

// fieldRule maps an ordered list of source keys onto one canonical attribute.
// The first candidate holding a usable value wins.
type fieldRule struct {
	candidates []string
	fallback   string
	assign     func(*models.Record, string)
}

// Newer feed versions use lowercase keys; older ones the uppercase export
// headers. Lowercase keys take precedence.
var normalizationRules = []fieldRule{
	{
		candidates: []string{"documento", "numero_documento", "NUMERO_DOCUMENTO", "DOCUMENTO"},
		fallback:   models.UnknownDocument,
		assign:     func(r *models.Record, v string) { r.DocumentID = v },
	},
	{
		candidates: []string{"nombre", "NOMBRE", "nombre_completo", "NOMBRE_COMPLETO"},
		fallback:   models.UnknownName,
		assign:     func(r *models.Record, v string) { r.FullName = v },
	},
	{
		candidates: []string{"codigo_ficha", "ficha", "FICHA", "CODIGO_FICHA"},
		fallback:   models.UnknownCohort,
		assign:     func(r *models.Record, v string) { r.CohortCode = v },
	},
	{
		candidates: []string{"programa", "PROGRAMA"},
		fallback:   models.UnknownProgram,
		assign:     func(r *models.Record, v string) { r.ProgramName = v },
	},
	{
		candidates: []string{"estado_aprendiz", "ESTADO_APRENDIZ"},
		fallback:   models.UnknownStatus,
		assign:     func(r *models.Record, v string) { r.Status = v },
	},
	{
		candidates: []string{"nivel_formacion", "NIVEL_DE_FORMACION", "NIVEL_FORMACION"},
		fallback:   models.UnknownLevel,
		assign:     func(r *models.Record, v string) { r.FormationLevel = v },
	},
	{
		candidates: []string{"estado_ficha", "ESTADO_FICHA"},
		fallback:   models.DefaultCohortStatus,
		assign:     func(r *models.Record, v string) { r.CohortStatus = v },
	},
	{
		candidates: []string{"jornada_formacion", "JORNADA_FORMACION"},
		fallback:   models.UnknownScheduleShift,
		assign:     func(r *models.Record, v string) { r.ScheduleShift = v },
	},
	{
		candidates: []string{"fecha_inicio_lectiva", "FECHA_INICIO_LECTIVA"},
		fallback:   models.UnknownLectureDate,
		assign:     func(r *models.Record, v string) { r.LectureStartDate = v },
	},
	{
		candidates: []string{"fecha_fin_lectiva", "FECHA_FIN_LECTIVA"},
		fallback:   models.UnknownLectureDate,
		assign:     func(r *models.Record, v string) { r.LectureEndDate = v },
	},
}

// NormalizeRecord builds a fixed-shape record from one feed object.
func NormalizeRecord(raw map[string]interface{}) models.Record {
	record := models.Record{Raw: raw}
	for _, rule := range normalizationRules {
		value := rule.fallback
		for _, key := range rule.candidates {
			if v, ok := stringValue(raw[key]); ok {
				value = v
				break
			}
		}
		rule.assign(&record, value)
	}
	return record
}

// NormalizeRecords normalizes a whole feed.
func NormalizeRecords(raws []map[string]interface{}) []models.Record {
	records := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, NormalizeRecord(raw))
	}
	return records
}

func stringValue(v interface{}) (string, bool) {
	var s string
	switch typed := v.(type) {
	case nil:
		return "", false
	case string:
		s = typed
	case json.Number:
		s = typed.String()
	case float64:
		s = strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(typed)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "undefined" || s == "null" {
		return "", false
	}
	return s, true
}
