package service

import (
	"fmt"
	"sync"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

// Table messages shown instead of rows.
const (
	MessageSelectCohort   = "Seleccione una ficha para ver los aprendices"
	MessageNoEnrollees    = "No se encontraron aprendices para esta ficha"
	messageNoResultsForFn = "No se encontraron resultados para %q"
)

// Renderer turns coordinator state changes into a drawable view.
type Renderer interface {
	ShowLogin(username string)
	ShowRoster(session models.Session)
	SetLoading(loading bool)
	ShowCohorts(cohorts []models.CohortSummary, selected string)
	ShowCohortInfo(snapshot *models.CohortSnapshot)
	ShowCohortTable(code string, records []models.Record, stats *models.CohortStatistics)
	ShowSearchResults(term string, groups []models.CohortGroup)
	ShowMessage(message string)
	SetSearchTerm(term string)
	ShowSearchHistory(history []models.SearchEntry)
	Snapshot() models.ViewModel
}

// Notifier queues user-visible messages until the next render.
type Notifier interface {
	Notify(level models.NotificationLevel, message string)
	Drain() []models.Notification
}

// ViewModelRenderer keeps the current models.ViewModel of one tab.
type ViewModelRenderer struct {
	mu            sync.Mutex
	view          models.ViewModel
	notifications []models.Notification
}

// NewViewModelRenderer starts at the login form.
func NewViewModelRenderer() *ViewModelRenderer {
	r := &ViewModelRenderer{}
	r.ShowLogin("")
	return r
}

// ShowLogin resets the view to the login form, keeping the typed username.
func (r *ViewModelRenderer) ShowLogin(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = models.ViewModel{
		State:         models.ViewAnonymous,
		LoginUsername: username,
		Cohorts:       []models.CohortOption{},
		Table:         models.TableView{Mode: models.TablePlaceholder, Message: MessageSelectCohort},
	}
}

// ShowRoster switches to the roster view for session.
func (r *ViewModelRenderer) ShowRoster(session models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.State = models.ViewAuthenticated
	r.view.Username = session.Username
	r.view.LoginTime = session.LoginTime
	r.view.LoginUsername = ""
}

// SetLoading toggles the loading indicator.
func (r *ViewModelRenderer) SetLoading(loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Loading = loading
}

// ShowCohorts fills the dropdown and marks selected.
func (r *ViewModelRenderer) ShowCohorts(cohorts []models.CohortSummary, selected string) {
	options := make([]models.CohortOption, 0, len(cohorts))
	for _, cohort := range cohorts {
		options = append(options, models.CohortOption{
			Value:    cohort.Code,
			Label:    CohortOptionLabel(cohort),
			Program:  cohort.ProgramName,
			Level:    cohort.FormationLevel,
			Selected: cohort.Code == selected,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Cohorts = options
	r.view.SelectedCohort = selected
}

// ShowCohortInfo sets the cohort info panel.
func (r *ViewModelRenderer) ShowCohortInfo(snapshot *models.CohortSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.CohortInfo = snapshot
}

// ShowCohortTable renders the rows of one cohort.
func (r *ViewModelRenderer) ShowCohortTable(code string, records []models.Record, stats *models.CohortStatistics) {
	rows := rowsOf(records)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Table = models.TableView{Mode: models.TableCohort, Rows: rows}
	r.view.Statistics = stats
	if stats != nil {
		info := stats.Info
		r.view.CohortInfo = &info
	}
}

// ShowSearchResults renders grouped search results.
func (r *ViewModelRenderer) ShowSearchResults(term string, groups []models.CohortGroup) {
	rowGroups := make([]models.RowGroup, 0, len(groups))
	for _, group := range groups {
		suffix := "s"
		if len(group.Records) == 1 {
			suffix = ""
		}
		rowGroups = append(rowGroups, models.RowGroup{
			CohortCode: group.CohortCode,
			Heading:    fmt.Sprintf("Ficha: %s (%d resultado%s)", group.CohortCode, len(group.Records), suffix),
			Rows:       rowsOf(group.Records),
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Table = models.TableView{Mode: models.TableSearch, Groups: rowGroups}
	r.view.Statistics = nil
}

// ShowMessage replaces the table with a message.
func (r *ViewModelRenderer) ShowMessage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Table = models.TableView{Mode: models.TablePlaceholder, Message: message}
	r.view.Statistics = nil
}

// SetSearchTerm mirrors the search input.
func (r *ViewModelRenderer) SetSearchTerm(term string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.SearchTerm = term
}

// ShowSearchHistory sets the recent searches.
func (r *ViewModelRenderer) ShowSearchHistory(history []models.SearchEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.SearchHistory = history
}

// Notify queues a notification.
func (r *ViewModelRenderer) Notify(level models.NotificationLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, models.Notification{Level: level, Message: message})
}

// Drain returns and clears the queued notifications.
func (r *ViewModelRenderer) Drain() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.notifications
	r.notifications = nil
	return pending
}

// Snapshot returns a copy of the current view without notifications.
func (r *ViewModelRenderer) Snapshot() models.ViewModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := r.view
	view.Cohorts = append([]models.CohortOption(nil), r.view.Cohorts...)
	view.SearchHistory = append([]models.SearchEntry(nil), r.view.SearchHistory...)
	return view
}

// CohortOptionLabel formats a dropdown entry.
func CohortOptionLabel(cohort models.CohortSummary) string {
	label := "Ficha " + cohort.Code
	if cohort.ProgramName != "" && cohort.ProgramName != models.UnknownProgram {
		label += " - " + cohort.ProgramName
	}
	return fmt.Sprintf("%s (%d aprendices)", label, cohort.EnrolleeCount)
}

func noResultsMessage(term string) string {
	return fmt.Sprintf(messageNoResultsForFn, term)
}

func rowsOf(records []models.Record) []models.RowView {
	rows := make([]models.RowView, 0, len(records))
	for _, record := range records {
		rowClass, badgeClass := models.StatusStyle(record.Status)
		rows = append(rows, models.RowView{
			Document:   record.DocumentID,
			Name:       record.FullName,
			Status:     record.Status,
			RowClass:   rowClass,
			BadgeClass: badgeClass,
			Title:      fmt.Sprintf("Documento: %s\nPrograma: %s\nEstado: %s", record.DocumentID, record.ProgramName, record.Status),
		})
	}
	return rows
}
