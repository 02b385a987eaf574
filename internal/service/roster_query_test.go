package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

func record(doc, name, code, status string) models.Record {
	return models.Record{
		DocumentID:       doc,
		FullName:         name,
		CohortCode:       code,
		ProgramName:      "ADSO",
		Status:           status,
		FormationLevel:   "TECNÓLOGO",
		CohortStatus:     models.DefaultCohortStatus,
		ScheduleShift:    "DIURNA",
		LectureStartDate: "2024-01-15",
		LectureEndDate:   models.UnknownLectureDate,
	}
}

func sampleRoster() []models.Record {
	return []models.Record{
		record("1001", "Ana Pérez", "10", "Formacion"),
		record("1002", "Luis Gómez", "2", "Retiro Voluntario"),
		record("1003", "Marta Ruiz", "1", "Formacion"),
		record("1004", "Carlos Díaz", "10", "Cancelado"),
		record("1005", "Sin ficha", models.UnknownCohort, "Formacion"),
		record("1006", "Nulo", "null", "Aplazado"),
	}
}

func TestUniqueCohortsNumericOrderAndCounts(t *testing.T) {
	summaries := UniqueCohorts(sampleRoster())
	require.Len(t, summaries, 3)

	codes := make([]string, 0, len(summaries))
	total := 0
	for _, s := range summaries {
		codes = append(codes, s.Code)
		total += s.EnrolleeCount
	}
	assert.Equal(t, []string{"1", "2", "10"}, codes)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, summaries[2].EnrolleeCount)
	assert.Equal(t, "ADSO", summaries[2].ProgramName)
}

func TestUniqueCohortsEmptyRoster(t *testing.T) {
	assert.Empty(t, UniqueCohorts(nil))
}

func TestCohortStatistics(t *testing.T) {
	stats, ok := CohortStatistics(sampleRoster(), " 10 ")
	require.True(t, ok)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, map[string]int{"Formacion": 1, "Cancelado": 1}, stats.CountsByStatus)
	assert.Equal(t, "10", stats.Info.Code)
	assert.Equal(t, "DIURNA", stats.Info.ScheduleShift)

	_, ok = CohortStatistics(sampleRoster(), "999")
	assert.False(t, ok)
	_, ok = CohortStatistics(nil, "10")
	assert.False(t, ok)
	_, ok = CohortStatistics(sampleRoster(), models.UnknownCohort)
	assert.False(t, ok)
}

func TestFilterByCohort(t *testing.T) {
	assert.Len(t, FilterByCohort(sampleRoster(), "10"), 2)
	assert.Empty(t, FilterByCohort(sampleRoster(), ""))
	assert.Empty(t, FilterByCohort(sampleRoster(), "3"))
	assert.Empty(t, FilterByCohort(sampleRoster(), models.UnknownCohort))
	assert.Empty(t, FilterByCohort(sampleRoster(), "null"))
}

func TestSearchBlankTermIsIdentity(t *testing.T) {
	roster := sampleRoster()
	assert.Equal(t, roster, Search(roster, ""))
	assert.Equal(t, roster, Search(roster, "   "))
}

func TestSearchCaseInsensitiveSubset(t *testing.T) {
	roster := sampleRoster()

	byName := Search(roster, "PÉREZ")
	require.Len(t, byName, 1)
	assert.Equal(t, "1001", byName[0].DocumentID)

	byStatus := Search(roster, "retiro")
	require.Len(t, byStatus, 1)
	assert.Equal(t, "1002", byStatus[0].DocumentID)

	byDocument := Search(roster, "100")
	assert.Len(t, byDocument, len(roster))

	assert.Empty(t, Search(roster, "zzz"))
}

func TestSearchSkipsMissingValues(t *testing.T) {
	roster := append(sampleRoster(), models.Record{
		DocumentID:  models.UnknownDocument,
		FullName:    "Pedro Sánchez",
		CohortCode:  "2",
		ProgramName: models.UnknownProgram,
		Status:      models.UnknownStatus,
	})

	bySin := Search(roster, "sin")
	require.Len(t, bySin, 1)
	assert.Equal(t, "1005", bySin[0].DocumentID)

	assert.Empty(t, Search(roster, "undefined"))
	assert.Empty(t, Search(roster, "null"))
	assert.Empty(t, Search(roster, "sin programa"))

	byName := Search(roster, "sánchez")
	require.Len(t, byName, 1)
	assert.Equal(t, models.UnknownDocument, byName[0].DocumentID)
}

func TestGroupByCohort(t *testing.T) {
	groups := GroupByCohort(Search(sampleRoster(), "formacion"))
	require.Len(t, groups, 3)
	assert.Equal(t, "1", groups[0].CohortCode)
	assert.Equal(t, "10", groups[1].CohortCode)
	assert.Equal(t, models.UnknownCohort, groups[2].CohortCode)
}
