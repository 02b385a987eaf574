package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/pkg/debounce"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

// User-visible notification texts.
const (
	notifyLoginFailed   = "Credenciales incorrectas"
	notifySessionFailed = "No fue posible iniciar la sesión, intente de nuevo"
	notifySaveFailed    = "No fue posible guardar la ficha seleccionada"
	notifyRosterFailed  = "No fue posible cargar los aprendices, intente más tarde"
	notifyRosterEmpty   = "No se encontraron aprendices en la fuente de datos"
	notifyLoggedOut     = "Sesión cerrada correctamente"
)

// RosterLoader returns the roster; on failure the slice is empty and the
// error explains why.
type RosterLoader interface {
	FetchRoster(ctx context.Context) ([]models.Record, error)
}

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(req models.LoginRequest) (string, error)
}

// Persistence is the per-scope storage used by a coordinator.
type Persistence interface {
	SaveSession(ctx context.Context, username string) error
	LoadSession(ctx context.Context) *models.Session
	ClearSession(ctx context.Context)
	SaveLastCohort(ctx context.Context, snapshot *models.CohortSnapshot) error
	LoadLastCohort(ctx context.Context) *models.CohortSnapshot
	SetCurrentSelection(ctx context.Context, code string)
	GetCurrentSelection(ctx context.Context) *models.Selection
	RecordSearchTerm(ctx context.Context, term string)
	GetSearchHistory(ctx context.Context) []models.SearchEntry
	StorageInfo(ctx context.Context) models.StorageInfo
}

// ViewRenderer is the renderer the coordinator draws to and notifies through.
type ViewRenderer interface {
	Renderer
	Notifier
}

// CoordinatorOptions wires a Coordinator.
type CoordinatorOptions struct {
	Roster         RosterLoader
	Auth           Authenticator
	Persistence    Persistence
	Renderer       ViewRenderer
	Scheduler      debounce.Scheduler
	SearchDebounce time.Duration
	SearchMinChars int
	Logger         *zap.Logger
	Now            func() time.Time
}

// Coordinator owns the view state of one browser tab. Every operation runs
// under mu; the roster fetch releases it while waiting on upstream.
type Coordinator struct {
	mu sync.Mutex

	roster      RosterLoader
	auth        Authenticator
	persistence Persistence
	renderer    ViewRenderer
	debouncer   *debounce.Debouncer
	minChars    int
	logger      *zap.Logger
	now         func() time.Time

	state      models.ViewState
	records    []models.Record
	cohorts    []models.CohortSummary
	selected   string
	searchTerm string
	inFlight   bool
	epoch      uint64
	searchSeq  uint64
	lastUsed   time.Time
}

// NewCoordinator builds an anonymous coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Renderer == nil {
		opts.Renderer = NewViewModelRenderer()
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = 500 * time.Millisecond
	}
	if opts.SearchMinChars <= 0 {
		opts.SearchMinChars = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		roster:      opts.Roster,
		auth:        opts.Auth,
		persistence: opts.Persistence,
		renderer:    opts.Renderer,
		debouncer:   debounce.New(opts.SearchDebounce, opts.Scheduler),
		minChars:    opts.SearchMinChars,
		logger:      opts.Logger,
		now:         opts.Now,
		state:       models.ViewAnonymous,
		lastUsed:    opts.Now(),
	}
}

// Restore rebuilds the view from persisted state on first load.
func (c *Coordinator) Restore(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	session := c.persistence.LoadSession(ctx)
	if session == nil {
		c.state = models.ViewAnonymous
		c.renderer.ShowLogin("")
		return
	}

	c.enterRosterView(ctx, *session)
	snapshot := c.persistence.LoadLastCohort(ctx)
	c.renderer.ShowCohortInfo(snapshot)

	if !c.fetchLocked(ctx) {
		return
	}

	code := ""
	if selection := c.persistence.GetCurrentSelection(ctx); selection != nil {
		code = selection.CohortCode
	} else if snapshot != nil {
		code = snapshot.Code
	}
	c.restoreCohortLocked(ctx, code)
}

// Login authenticates and loads the roster. A failed login leaves an
// anonymous view anonymous with the username kept in the form, and an
// authenticated view unchanged.
func (c *Coordinator) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	name, err := c.auth.Authenticate(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		c.failLogin(username, notifyLoginFailed)
		return err
	}

	if err := c.persistence.SaveSession(ctx, name); err != nil {
		c.logger.Warn("session not saved", zap.Error(err))
		c.failLogin(username, notifySessionFailed)
		return err
	}

	session := c.persistence.LoadSession(ctx)
	if session == nil {
		loginTime := c.now().UTC()
		session = &models.Session{Username: name, LoginTime: &loginTime}
	}
	c.enterRosterView(ctx, *session)
	c.renderer.Notify(models.NotificationSuccess, "Bienvenido, "+name)

	if !c.fetchLocked(ctx) {
		return nil
	}

	if snapshot := c.persistence.LoadLastCohort(ctx); snapshot != nil {
		c.restoreCohortLocked(ctx, snapshot.Code)
	}
	return nil
}

// Logout clears persisted and in-memory state. A fetch still in flight is
// discarded when it completes.
func (c *Coordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.epoch++
	c.inFlight = false
	c.cancelLiveSearch()
	c.persistence.ClearSession(ctx)

	c.state = models.ViewAnonymous
	c.records = nil
	c.cohorts = nil
	c.selected = ""
	c.searchTerm = ""
	c.renderer.ShowLogin("")
	c.renderer.Notify(models.NotificationInfo, notifyLoggedOut)
}

// SelectCohort shows the table of one cohort. An empty code returns to the
// placeholder.
func (c *Coordinator) SelectCohort(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	c.cancelLiveSearch()
	c.selectCohortLocked(ctx, code)
	return nil
}

// SubmitSearch runs a search immediately. A blank term clears the search.
func (c *Coordinator) SubmitSearch(ctx context.Context, term string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	c.cancelLiveSearch()
	c.searchLocked(ctx, term)
	return nil
}

// TypeSearch handles live typing: terms below the minimum length cancel any
// pending search, longer ones reschedule it after the quiescence delay.
func (c *Coordinator) TypeSearch(term string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(term)
	c.searchTerm = term
	c.renderer.SetSearchTerm(term)

	if trimmed == "" {
		c.cancelLiveSearch()
		c.clearSearchLocked()
		return nil
	}
	if utf8.RuneCountInString(trimmed) < c.minChars {
		c.cancelLiveSearch()
		return nil
	}

	c.searchSeq++
	epoch, seq := c.epoch, c.searchSeq
	c.debouncer.Trigger(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch || c.searchSeq != seq || c.state != models.ViewAuthenticated {
			return
		}
		c.searchLocked(context.Background(), trimmed)
	})
	return nil
}

// ClearSearch returns the table to the placeholder.
func (c *Coordinator) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return err
	}
	c.cancelLiveSearch()
	c.clearSearchLocked()
	return nil
}

// View returns the current view model with the notifications queued since
// the previous call.
func (c *Coordinator) View() models.ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	view := c.renderer.Snapshot()
	view.Notifications = c.renderer.Drain()
	return view
}

// Cohorts returns the cohort summaries of the loaded roster.
func (c *Coordinator) Cohorts() ([]models.CohortSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return nil, err
	}
	return append([]models.CohortSummary{}, c.cohorts...), nil
}

// CohortRecords returns the loaded records of one cohort.
func (c *Coordinator) CohortRecords(code string) ([]models.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return nil, err
	}
	records := FilterByCohort(c.records, code)
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, MessageNoEnrollees)
	}
	return records, nil
}

// Statistics aggregates one cohort of the loaded roster.
func (c *Coordinator) Statistics(code string) (*models.CohortStatistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return nil, err
	}
	stats, ok := CohortStatistics(c.records, code)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, MessageNoEnrollees)
	}
	return stats, nil
}

// SearchHistory returns the recent searches of the tab.
func (c *Coordinator) SearchHistory(ctx context.Context) ([]models.SearchEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if err := c.requireAuthenticated(); err != nil {
		return nil, err
	}
	return c.persistence.GetSearchHistory(ctx), nil
}

// StorageInfo reports storage usage for the scope.
func (c *Coordinator) StorageInfo(ctx context.Context) models.StorageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return c.persistence.StorageInfo(ctx)
}

// Authenticated reports whether the roster view is active.
func (c *Coordinator) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == models.ViewAuthenticated
}

// IdleSince returns the time of the last operation.
func (c *Coordinator) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Close cancels pending timers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cancelLiveSearch()
}

// cancelLiveSearch also invalidates a callback that already fired and is
// waiting for mu.
func (c *Coordinator) cancelLiveSearch() {
	c.searchSeq++
	c.debouncer.Cancel()
}

func (c *Coordinator) touch() {
	c.lastUsed = c.now()
}

func (c *Coordinator) requireAuthenticated() error {
	if c.state != models.ViewAuthenticated {
		return appErrors.Clone(appErrors.ErrUnauthorized, "inicie sesión para continuar")
	}
	return nil
}

// failLogin reports a rejected login. An authenticated view keeps its
// session, roster and selection.
func (c *Coordinator) failLogin(username, message string) {
	c.renderer.Notify(models.NotificationError, message)
	if c.state == models.ViewAuthenticated {
		return
	}
	c.state = models.ViewAnonymous
	c.renderer.ShowLogin(username)
}

func (c *Coordinator) enterRosterView(ctx context.Context, session models.Session) {
	c.state = models.ViewAuthenticated
	c.renderer.ShowRoster(session)
	c.renderer.ShowCohorts(c.cohorts, c.selected)
	c.renderer.ShowSearchHistory(c.persistence.GetSearchHistory(ctx))
	if c.records == nil {
		c.renderer.ShowMessage(MessageSelectCohort)
	}
}

// fetchLocked loads the roster with mu released. It reports false when the
// caller must not continue: another fetch is already running or the view was
// torn down while waiting.
func (c *Coordinator) fetchLocked(ctx context.Context) bool {
	if c.inFlight {
		c.logger.Debug("roster fetch already in flight")
		return false
	}
	c.inFlight = true
	epoch := c.epoch
	c.renderer.SetLoading(true)

	c.mu.Unlock()
	records, err := c.roster.FetchRoster(ctx)
	c.mu.Lock()

	if c.epoch != epoch {
		c.logger.Debug("discarding stale roster fetch")
		return false
	}
	c.inFlight = false
	c.renderer.SetLoading(false)

	if records == nil {
		records = []models.Record{}
	}
	c.records = records
	c.cohorts = UniqueCohorts(records)
	c.renderer.ShowCohorts(c.cohorts, c.selected)

	switch {
	case err != nil:
		c.renderer.Notify(models.NotificationWarning, notifyRosterFailed)
	case len(records) == 0:
		c.renderer.Notify(models.NotificationWarning, notifyRosterEmpty)
	}
	return true
}

func (c *Coordinator) restoreCohortLocked(ctx context.Context, code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	for _, cohort := range c.cohorts {
		if cohort.Code == code {
			c.selectCohortLocked(ctx, code)
			return
		}
	}
}

func (c *Coordinator) selectCohortLocked(ctx context.Context, code string) {
	code = strings.TrimSpace(code)
	c.searchTerm = ""
	c.renderer.SetSearchTerm("")
	c.selected = code
	c.renderer.ShowCohorts(c.cohorts, code)

	if code == "" {
		c.persistence.SetCurrentSelection(ctx, "")
		c.renderer.ShowMessage(MessageSelectCohort)
		return
	}

	records := FilterByCohort(c.records, code)
	if len(records) == 0 {
		c.renderer.ShowMessage(MessageNoEnrollees)
		return
	}

	stats, _ := CohortStatistics(records, code)
	snapshot := SnapshotOf(records[0])
	if err := c.persistence.SaveLastCohort(ctx, &snapshot); err != nil {
		c.logger.Warn("cohort snapshot not saved", zap.Error(err))
		c.renderer.Notify(models.NotificationError, notifySaveFailed)
	}
	c.persistence.SetCurrentSelection(ctx, code)
	c.renderer.ShowCohortTable(code, records, stats)
}

func (c *Coordinator) searchLocked(ctx context.Context, term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		c.clearSearchLocked()
		return
	}

	c.searchTerm = term
	c.renderer.SetSearchTerm(term)
	c.selected = ""
	c.renderer.ShowCohorts(c.cohorts, "")

	results := Search(c.records, term)
	c.persistence.RecordSearchTerm(ctx, term)
	c.renderer.ShowSearchHistory(c.persistence.GetSearchHistory(ctx))

	if len(results) == 0 {
		c.renderer.ShowMessage(noResultsMessage(term))
		return
	}
	c.renderer.ShowSearchResults(term, GroupByCohort(results))
}

func (c *Coordinator) clearSearchLocked() {
	c.searchTerm = ""
	c.renderer.SetSearchTerm("")
	c.selected = ""
	c.renderer.ShowCohorts(c.cohorts, "")
	c.renderer.ShowMessage(MessageSelectCohort)
}
