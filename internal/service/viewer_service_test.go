package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/repository"
	"github.com/noah-isme/aprendices-roster/pkg/debounce"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

type stubLoader struct {
	calls   int32
	records []models.Record
	err     error
	gate    chan struct{}
}

func (l *stubLoader) FetchRoster(ctx context.Context) ([]models.Record, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return []models.Record{}, l.err
	}
	return l.records, nil
}

type coordinatorFixture struct {
	coordinator *Coordinator
	loader      *stubLoader
	durable     *repository.MemoryStore
	session     *repository.MemoryStore
	persistence *PersistenceService
	scheduler   *debounce.FakeScheduler
}

func e2eRoster() []models.Record {
	return []models.Record{
		record("1", "Ana Pérez", "2024-1", "Formacion"),
		record("2", "Luis Gómez", "2024-1", "Retiro Voluntario"),
		record("3", "Marta Ruiz", "2024-2", "Cancelado"),
	}
}

func newCoordinatorFixture(t *testing.T, loader *stubLoader) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		loader:    loader,
		durable:   repository.NewMemoryStore(0),
		session:   repository.NewMemoryStore(0),
		scheduler: debounce.NewFakeScheduler(),
	}
	f.persistence = NewPersistenceService(testScope, PersistenceOptions{Durable: f.durable, Session: f.session})
	f.coordinator = NewCoordinator(CoordinatorOptions{
		Roster:      loader,
		Auth:        newTestAuthService(t),
		Persistence: f.persistence,
		Scheduler:   f.scheduler,
	})
	return f
}

func levels(notifications []models.Notification) []models.NotificationLevel {
	out := make([]models.NotificationLevel, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, n.Level)
	}
	return out
}

func TestLoginBlankPasswordStaysAnonymous(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})

	err := f.coordinator.Login(context.Background(), "maria", "")
	assert.ErrorIs(t, err, appErrors.ErrAuthFailure)

	view := f.coordinator.View()
	assert.Equal(t, models.ViewAnonymous, view.State)
	assert.Equal(t, "maria", view.LoginUsername)
	assert.Equal(t, []models.NotificationLevel{models.NotificationError}, levels(view.Notifications))
	assert.Zero(t, atomic.LoadInt32(&f.loader.calls))
	assert.Nil(t, f.persistence.LoadSession(context.Background()))
}

func TestLoginSelectSearchLogout(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()

	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))
	view := f.coordinator.View()
	assert.Equal(t, models.ViewAuthenticated, view.State)
	assert.Equal(t, "maria", view.Username)
	require.Len(t, view.Cohorts, 2)
	assert.Equal(t, "Ficha 2024-1 - ADSO (2 aprendices)", view.Cohorts[0].Label)
	assert.Equal(t, models.TablePlaceholder, view.Table.Mode)

	session := f.persistence.LoadSession(ctx)
	require.NotNil(t, session)
	assert.Equal(t, "maria", session.Username)

	require.NoError(t, f.coordinator.SelectCohort(ctx, "2024-1"))
	view = f.coordinator.View()
	assert.Equal(t, models.TableCohort, view.Table.Mode)
	require.Len(t, view.Table.Rows, 2)
	assert.Equal(t, "bg-red-100 font-bold text-red-700", view.Table.Rows[1].RowClass)
	assert.Equal(t, "2024-1", view.SelectedCohort)
	require.NotNil(t, view.Statistics)
	assert.Equal(t, 2, view.Statistics.Total)

	snapshot := f.persistence.LoadLastCohort(ctx)
	require.NotNil(t, snapshot)
	assert.Equal(t, "2024-1", snapshot.Code)
	selection := f.persistence.GetCurrentSelection(ctx)
	require.NotNil(t, selection)
	assert.Equal(t, "2024-1", selection.CohortCode)

	require.NoError(t, f.coordinator.TypeSearch("r"))
	assert.Zero(t, f.scheduler.Scheduled())
	require.NoError(t, f.coordinator.TypeSearch("ru"))
	assert.Equal(t, 1, f.scheduler.Scheduled())
	f.scheduler.Advance(499 * time.Millisecond)
	assert.Equal(t, models.TableCohort, f.coordinator.View().Table.Mode)
	f.scheduler.Advance(time.Millisecond)

	view = f.coordinator.View()
	assert.Equal(t, models.TableSearch, view.Table.Mode)
	assert.Empty(t, view.SelectedCohort)
	require.Len(t, view.Table.Groups, 1)
	assert.Equal(t, "Ficha: 2024-2 (1 resultado)", view.Table.Groups[0].Heading)
	require.Len(t, view.SearchHistory, 1)
	assert.Equal(t, "ru", view.SearchHistory[0].Term)

	f.coordinator.Logout(ctx)
	view = f.coordinator.View()
	assert.Equal(t, models.ViewAnonymous, view.State)
	assert.Contains(t, levels(view.Notifications), models.NotificationInfo)
	for _, key := range allStorageKeys {
		_, ok, _ := f.durable.Get(ctx, testScope.ClientID, key)
		assert.False(t, ok, key)
		_, ok, _ = f.session.Get(ctx, testScope.Key(), key)
		assert.False(t, ok, key)
	}
	assert.ErrorIs(t, f.coordinator.SelectCohort(ctx, "2024-1"), appErrors.ErrUnauthorized)
}

func TestSubmitSearchAndClear(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))

	require.NoError(t, f.coordinator.SubmitSearch(ctx, "zzz"))
	view := f.coordinator.View()
	assert.Equal(t, models.TablePlaceholder, view.Table.Mode)
	assert.Equal(t, `No se encontraron resultados para "zzz"`, view.Table.Message)

	require.NoError(t, f.coordinator.ClearSearch(ctx))
	view = f.coordinator.View()
	assert.Equal(t, MessageSelectCohort, view.Table.Message)
	assert.Empty(t, view.SearchTerm)

	require.NoError(t, f.coordinator.SelectCohort(ctx, "9999"))
	assert.Equal(t, MessageNoEnrollees, f.coordinator.View().Table.Message)
}

func TestTypeSearchBelowThresholdCancelsPending(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))

	require.NoError(t, f.coordinator.TypeSearch("an"))
	require.NoError(t, f.coordinator.TypeSearch("a"))
	f.scheduler.Advance(time.Second)

	assert.Equal(t, models.TablePlaceholder, f.coordinator.View().Table.Mode)
	assert.Empty(t, f.persistence.GetSearchHistory(ctx))
}

func TestFailedLoginKeepsAuthenticatedView(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))
	require.NoError(t, f.coordinator.SelectCohort(ctx, "2024-1"))
	f.coordinator.View()

	err := f.coordinator.Login(ctx, "maria", "wrong")
	assert.ErrorIs(t, err, appErrors.ErrAuthFailure)

	view := f.coordinator.View()
	assert.Equal(t, models.ViewAuthenticated, view.State)
	assert.Equal(t, "maria", view.Username)
	assert.Equal(t, "2024-1", view.SelectedCohort)
	assert.Equal(t, models.TableCohort, view.Table.Mode)
	assert.Len(t, view.Cohorts, 2)
	assert.Equal(t, []models.NotificationLevel{models.NotificationError}, levels(view.Notifications))

	session := f.persistence.LoadSession(ctx)
	require.NotNil(t, session)
	assert.Equal(t, "maria", session.Username)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.loader.calls))
}

func TestPendingSearchDroppedByLogout(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))

	require.NoError(t, f.coordinator.TypeSearch("ru"))
	f.coordinator.Logout(ctx)
	f.scheduler.Advance(500 * time.Millisecond)

	view := f.coordinator.View()
	assert.Equal(t, models.ViewAnonymous, view.State)
	assert.Equal(t, models.TablePlaceholder, view.Table.Mode)
	assert.Empty(t, f.persistence.GetSearchHistory(ctx))

	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))
	f.scheduler.Advance(time.Second)
	assert.Equal(t, models.TablePlaceholder, f.coordinator.View().Table.Mode)
	assert.Empty(t, f.persistence.GetSearchHistory(ctx))
}

func TestFetchFailureKeepsAuthenticated(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{err: errors.New("boom")})

	require.NoError(t, f.coordinator.Login(context.Background(), "maria", "adso3064975"))
	view := f.coordinator.View()
	assert.Equal(t, models.ViewAuthenticated, view.State)
	assert.Empty(t, view.Cohorts)
	assert.Contains(t, levels(view.Notifications), models.NotificationWarning)
}

func TestStaleFetchAfterLogoutIsDiscarded(t *testing.T) {
	loader := &stubLoader{records: e2eRoster(), gate: make(chan struct{})}
	f := newCoordinatorFixture(t, loader)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.coordinator.Login(ctx, "maria", "adso3064975") }()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&loader.calls) == 1 }, time.Second, time.Millisecond)

	f.coordinator.Logout(ctx)
	close(loader.gate)
	require.NoError(t, <-done)

	view := f.coordinator.View()
	assert.Equal(t, models.ViewAnonymous, view.State)
	assert.Empty(t, view.Cohorts)
	assert.False(t, view.Loading)
}

func TestDuplicateLoginFetchesOnce(t *testing.T) {
	loader := &stubLoader{records: e2eRoster(), gate: make(chan struct{})}
	f := newCoordinatorFixture(t, loader)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.coordinator.Login(ctx, "maria", "adso3064975") }()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&loader.calls) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.coordinator.Login(ctx, "maria", "adso3064975"))
	assert.True(t, f.coordinator.View().Loading)

	close(loader.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.Len(t, f.coordinator.View().Cohorts, 2)
}

func TestRestorePrefersTabSelection(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.persistence.SaveSession(ctx, "maria"))
	require.NoError(t, f.persistence.SaveLastCohort(ctx, &models.CohortSnapshot{Code: "2024-1"}))
	f.persistence.SetCurrentSelection(ctx, "2024-2")

	f.coordinator.Restore(ctx)
	view := f.coordinator.View()
	assert.Equal(t, models.ViewAuthenticated, view.State)
	assert.Equal(t, "2024-2", view.SelectedCohort)
	require.Len(t, view.Table.Rows, 1)
	assert.Equal(t, "Marta Ruiz", view.Table.Rows[0].Name)
}

func TestRestoreUsesSnapshotAndLegacySession(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	ctx := context.Background()
	require.NoError(t, f.durable.Set(ctx, testScope.ClientID, models.StorageKeyUser, "alice"))
	require.NoError(t, f.persistence.SaveLastCohort(ctx, &models.CohortSnapshot{Code: "2024-1"}))

	f.coordinator.Restore(ctx)
	view := f.coordinator.View()
	assert.Equal(t, "alice", view.Username)
	assert.Nil(t, view.LoginTime)
	assert.Equal(t, "2024-1", view.SelectedCohort)
	assert.Len(t, view.Table.Rows, 2)
}

func TestRestoreWithoutSession(t *testing.T) {
	f := newCoordinatorFixture(t, &stubLoader{records: e2eRoster()})
	f.coordinator.Restore(context.Background())

	assert.Equal(t, models.ViewAnonymous, f.coordinator.View().State)
	assert.Zero(t, atomic.LoadInt32(&f.loader.calls))
}

func TestViewerServiceReusesAndSweeps(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewViewerService(ViewerDeps{
		Roster:  &stubLoader{records: e2eRoster()},
		Auth:    newTestAuthService(t),
		Durable: repository.NewMemoryStore(0),
		Session: repository.NewMemoryStore(0),
		Metrics: NewMetricsService(),
		Now:     func() time.Time { return now },
	}, ViewerConfig{IdleTTL: time.Hour})

	first := svc.Coordinator(context.Background(), testScope)
	assert.Same(t, first, svc.Coordinator(context.Background(), testScope))
	other := svc.Coordinator(context.Background(), models.ClientScope{ClientID: "client-1", TabID: "tab-2"})
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, svc.Active())

	now = now.Add(30 * time.Minute)
	other.View()
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, svc.Sweep())
	assert.Equal(t, 1, svc.Active())
	assert.NotSame(t, first, svc.Coordinator(context.Background(), testScope))
}
