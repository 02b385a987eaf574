package models

import "time"

// Storage slot names shared with the original browser client.
const (
	StorageKeyUser          = "user"
	StorageKeyCohort        = "ficha"
	StorageKeySelection     = "selectedFicha"
	StorageKeySearchHistory = "searchHistory"
)

// Session identifies the logged-in user. LoginTime is nil for sessions
// written by the legacy client, which stored the bare username.
type Session struct {
	Username  string     `json:"username"`
	LoginTime *time.Time `json:"loginTime"`
}

// CohortSnapshot is the descriptive data of the last viewed cohort.
type CohortSnapshot struct {
	Code             string     `json:"codigo"`
	ProgramName      string     `json:"programa"`
	FormationLevel   string     `json:"nivel"`
	CohortStatus     string     `json:"estado"`
	ScheduleShift    string     `json:"jornadaFormacion,omitempty"`
	LectureStartDate string     `json:"fechaInicio,omitempty"`
	LectureEndDate   string     `json:"fechaFin,omitempty"`
	SavedAt          *time.Time `json:"savedAt,omitempty"`
}

// Selection is the cohort currently selected in a tab.
type Selection struct {
	CohortCode string    `json:"fichaId"`
	SelectedAt time.Time `json:"selectedAt"`
}

// SearchEntry is one search history item.
type SearchEntry struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientScope addresses the storage of one browser: ClientID outlives the
// browser session, TabID does not.
type ClientScope struct {
	ClientID string `json:"client_id"`
	TabID    string `json:"tab_id"`
}

// Key identifies the scope in registries.
func (s ClientScope) Key() string {
	return s.ClientID + "/" + s.TabID
}

// StoreUsage summarises one key-value store for diagnostics.
type StoreUsage struct {
	Items int `json:"items"`
	Bytes int `json:"used"`
}

// StorageInfo reports usage of both stores for a scope.
type StorageInfo struct {
	Durable StoreUsage `json:"localStorage"`
	Session StoreUsage `json:"sessionStorage"`
}
