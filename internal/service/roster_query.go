package service

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

// Roster queries are pure functions over a snapshot owned by the caller.

// newCodeCollator orders cohort codes so that "9" sorts before "10".
// Collators keep internal buffers, so each sort gets its own.
func newCodeCollator() *collate.Collator {
	return collate.New(language.Spanish, collate.Numeric)
}

// UniqueCohorts groups the roster by cohort code. Records without a usable
// code are skipped; descriptive fields come from the first record seen.
func UniqueCohorts(roster []models.Record) []models.CohortSummary {
	index := make(map[string]int)
	summaries := make([]models.CohortSummary, 0)
	for _, record := range roster {
		if !record.HasCohort() {
			continue
		}
		code := strings.TrimSpace(record.CohortCode)
		if i, ok := index[code]; ok {
			summaries[i].EnrolleeCount++
			continue
		}
		index[code] = len(summaries)
		summaries = append(summaries, models.CohortSummary{
			Code:           code,
			ProgramName:    record.ProgramName,
			FormationLevel: record.FormationLevel,
			CohortStatus:   record.CohortStatus,
			EnrolleeCount:  1,
		})
	}

	collator := newCodeCollator()
	sort.SliceStable(summaries, func(i, j int) bool {
		return collator.CompareString(summaries[i].Code, summaries[j].Code) < 0
	})
	return summaries
}

// FilterByCohort returns the records whose trimmed cohort code equals code.
// Records without a cohort never match, not even their own sentinel code.
func FilterByCohort(roster []models.Record, code string) []models.Record {
	code = strings.TrimSpace(code)
	matches := make([]models.Record, 0)
	if code == "" {
		return matches
	}
	for _, record := range roster {
		if record.HasCohort() && strings.TrimSpace(record.CohortCode) == code {
			matches = append(matches, record)
		}
	}
	return matches
}

// CohortStatistics aggregates one cohort. The boolean is false when no record
// carries the code.
func CohortStatistics(roster []models.Record, code string) (*models.CohortStatistics, bool) {
	matches := FilterByCohort(roster, code)
	if len(matches) == 0 {
		return nil, false
	}

	counts := make(map[string]int)
	for _, record := range matches {
		counts[record.Status]++
	}

	return &models.CohortStatistics{
		Total:          len(matches),
		CountsByStatus: counts,
		Info:           SnapshotOf(matches[0]),
	}, true
}

// Search matches term case-insensitively against name, document, status,
// program and cohort code. Attributes left at their missing-value default are
// not searched. A blank term returns roster unchanged.
func Search(roster []models.Record, term string) []models.Record {
	term = strings.TrimSpace(term)
	if term == "" {
		return roster
	}

	fold := cases.Fold()
	needle := fold.String(term)
	matches := make([]models.Record, 0)
	for _, record := range roster {
		for _, field := range searchableFields(record) {
			if strings.Contains(fold.String(field), needle) {
				matches = append(matches, record)
				break
			}
		}
	}
	return matches
}

func searchableFields(record models.Record) []string {
	fields := make([]string, 0, 5)
	for _, f := range [...]struct{ value, missing string }{
		{record.FullName, models.UnknownName},
		{record.DocumentID, models.UnknownDocument},
		{record.Status, models.UnknownStatus},
		{record.ProgramName, models.UnknownProgram},
	} {
		if f.value != f.missing {
			fields = append(fields, f.value)
		}
	}
	if record.HasCohort() {
		fields = append(fields, record.CohortCode)
	}
	return fields
}

// GroupByCohort splits search results into per-cohort groups ordered by code.
// Records keep their relative order inside a group.
func GroupByCohort(records []models.Record) []models.CohortGroup {
	index := make(map[string]int)
	groups := make([]models.CohortGroup, 0)
	for _, record := range records {
		code := strings.TrimSpace(record.CohortCode)
		if !record.HasCohort() {
			code = models.UnknownCohort
		}
		i, ok := index[code]
		if !ok {
			i = len(groups)
			index[code] = i
			groups = append(groups, models.CohortGroup{CohortCode: code})
		}
		groups[i].Records = append(groups[i].Records, record)
	}

	collator := newCodeCollator()
	sort.SliceStable(groups, func(i, j int) bool {
		return collator.CompareString(groups[i].CohortCode, groups[j].CohortCode) < 0
	})
	return groups
}

// SnapshotOf copies the descriptive cohort fields of a record.
func SnapshotOf(record models.Record) models.CohortSnapshot {
	return models.CohortSnapshot{
		Code:             strings.TrimSpace(record.CohortCode),
		ProgramName:      record.ProgramName,
		FormationLevel:   record.FormationLevel,
		CohortStatus:     record.CohortStatus,
		ScheduleShift:    record.ScheduleShift,
		LectureStartDate: record.LectureStartDate,
		LectureEndDate:   record.LectureEndDate,
	}
}
