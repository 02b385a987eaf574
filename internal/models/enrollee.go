package models

import "strings"

// Sentinels used when the upstream feed omits an attribute.
const (
	UnknownDocument       = "Sin documento"
	UnknownName           = "Sin nombre"
	UnknownCohort         = "undefined"
	UnknownProgram        = "Sin programa"
	UnknownStatus         = "Sin estado"
	UnknownLevel          = "Sin nivel"
	DefaultCohortStatus   = "Activo"
	UnknownScheduleShift  = "Sin jornada"
	UnknownLectureDate    = "Sin fecha"
	cohortCodeLiteralNull = "null"
)

// EnrolleeStatus is the enrollment state reported by the feed. The set is
// open: values outside the constants below are kept as-is.
type EnrolleeStatus string

// Known enrollee statuses.
const (
	StatusInTraining  EnrolleeStatus = "Formacion"
	StatusWithdrawn   EnrolleeStatus = "Retiro Voluntario"
	StatusCancelled   EnrolleeStatus = "Cancelado"
	StatusDeferred    EnrolleeStatus = "Aplazado"
	StatusTransferred EnrolleeStatus = "Trasladado"
)

// Record is one normalized roster row. Every attribute is populated; Raw
// keeps the source object for diagnostics only.
type Record struct {
	DocumentID       string                 `json:"documento"`
	FullName         string                 `json:"nombre"`
	CohortCode       string                 `json:"codigo_ficha"`
	ProgramName      string                 `json:"programa"`
	Status           string                 `json:"estado_aprendiz"`
	FormationLevel   string                 `json:"nivel_formacion"`
	CohortStatus     string                 `json:"estado_ficha"`
	ScheduleShift    string                 `json:"jornada_formacion"`
	LectureStartDate string                 `json:"fecha_inicio_lectiva"`
	LectureEndDate   string                 `json:"fecha_fin_lectiva"`
	Raw              map[string]interface{} `json:"raw,omitempty"`
}

// HasCohort reports whether the record belongs to an identifiable cohort.
func (r Record) HasCohort() bool {
	code := strings.TrimSpace(r.CohortCode)
	return code != "" && code != UnknownCohort && code != cohortCodeLiteralNull
}

// IsComplete reports whether the attributes needed to list the enrollee
// came from the feed rather than from a sentinel.
func (r Record) IsComplete() bool {
	return r.DocumentID != UnknownDocument &&
		r.FullName != UnknownName &&
		r.HasCohort() &&
		r.ProgramName != UnknownProgram &&
		r.Status != UnknownStatus
}

// CohortSummary is a dropdown entry derived by grouping the roster.
type CohortSummary struct {
	Code           string `json:"codigo"`
	ProgramName    string `json:"programa"`
	FormationLevel string `json:"nivel"`
	CohortStatus   string `json:"estado"`
	EnrolleeCount  int    `json:"totalAprendices"`
}

// CohortStatistics aggregates a single cohort.
type CohortStatistics struct {
	Total          int            `json:"totalAprendices"`
	CountsByStatus map[string]int `json:"porEstado"`
	Info           CohortSnapshot `json:"fichaInfo"`
}

// CohortGroup holds the records of one cohort inside a search result.
type CohortGroup struct {
	CohortCode string   `json:"codigo"`
	Records    []Record `json:"aprendices"`
}
