package models

import (
	"strings"
	"time"
)

// ViewState is the top-level state of a tab.
type ViewState string

const (
	ViewAnonymous     ViewState = "anonymous"
	ViewAuthenticated ViewState = "authenticated"
)

// NotificationLevel classifies user-visible messages.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
	NotificationWarning NotificationLevel = "warning"
	NotificationInfo    NotificationLevel = "info"
)

// Notification is a message queued for the next render.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// TableMode tells which content the results table holds.
type TableMode string

const (
	TablePlaceholder TableMode = "placeholder"
	TableCohort      TableMode = "cohort"
	TableSearch      TableMode = "search"
)

// CohortOption is one entry of the cohort dropdown.
type CohortOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Program  string `json:"program"`
	Level    string `json:"level"`
	Selected bool   `json:"selected"`
}

// RowView is a rendered table row.
type RowView struct {
	Document   string `json:"document"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	RowClass   string `json:"row_class"`
	BadgeClass string `json:"badge_class"`
	Title      string `json:"title"`
}

// RowGroup is a cohort section of a search result table.
type RowGroup struct {
	CohortCode string    `json:"cohort_code"`
	Heading    string    `json:"heading"`
	Rows       []RowView `json:"rows"`
}

// TableView is the results table.
type TableView struct {
	Mode    TableMode  `json:"mode"`
	Message string     `json:"message,omitempty"`
	Rows    []RowView  `json:"rows,omitempty"`
	Groups  []RowGroup `json:"groups,omitempty"`
}

// ViewModel is everything the transport layer needs to draw a tab.
type ViewModel struct {
	State          ViewState         `json:"state"`
	Username       string            `json:"username,omitempty"`
	LoginTime      *time.Time        `json:"login_time,omitempty"`
	LoginUsername  string            `json:"login_username,omitempty"`
	Loading        bool              `json:"loading"`
	Cohorts        []CohortOption    `json:"cohorts"`
	SelectedCohort string            `json:"selected_cohort,omitempty"`
	CohortInfo     *CohortSnapshot   `json:"cohort_info,omitempty"`
	Statistics     *CohortStatistics `json:"statistics,omitempty"`
	Table          TableView         `json:"table"`
	SearchTerm     string            `json:"search_term,omitempty"`
	SearchHistory  []SearchEntry     `json:"search_history,omitempty"`
	Notifications  []Notification    `json:"notifications,omitempty"`
}

// Authenticated reports whether the roster view is active.
func (v ViewModel) Authenticated() bool {
	return v.State == ViewAuthenticated
}

var badgeClasses = map[EnrolleeStatus]string{
	StatusInTraining:  "bg-green-200 text-green-800",
	StatusWithdrawn:   "bg-red-200 text-red-800",
	StatusCancelled:   "bg-orange-200 text-orange-800",
	StatusDeferred:    "bg-yellow-200 text-yellow-800",
	StatusTransferred: "bg-blue-200 text-blue-800",
}

const defaultBadgeClass = "bg-gray-200 text-gray-800"

// StatusStyle returns the row and badge classes for an enrollee status.
// Unknown statuses get a plain row and the gray badge.
func StatusStyle(status string) (rowClass, badgeClass string) {
	upper := strings.ToUpper(status)
	switch {
	case strings.Contains(upper, "RETIRO"):
		rowClass = "bg-red-100 font-bold text-red-700"
	case strings.Contains(upper, "CANCELADO"):
		rowClass = "bg-orange-100 text-orange-700"
	case strings.Contains(upper, "FORMACION"), strings.Contains(upper, "FORMACIÓN"):
		rowClass = "bg-green-100 text-green-700"
	}

	badgeClass, ok := badgeClasses[EnrolleeStatus(status)]
	if !ok {
		badgeClass = defaultBadgeClass
	}
	return rowClass, badgeClass
}
