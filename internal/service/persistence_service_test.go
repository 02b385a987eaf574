package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/repository"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

var testScope = models.ClientScope{ClientID: "client-1", TabID: "tab-1"}

type persistenceFixture struct {
	svc     *PersistenceService
	durable *repository.MemoryStore
	session *repository.MemoryStore
	now     time.Time
}

func newPersistenceFixture(t *testing.T) *persistenceFixture {
	t.Helper()
	f := &persistenceFixture{
		durable: repository.NewMemoryStore(0),
		session: repository.NewMemoryStore(0),
		now:     time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewPersistenceService(testScope, PersistenceOptions{
		Durable: f.durable,
		Session: f.session,
		Now: func() time.Time {
			f.now = f.now.Add(time.Second)
			return f.now
		},
	})
	return f
}

func TestSaveAndLoadSession(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveSession(ctx, "  maria "))
	session := f.svc.LoadSession(ctx)
	require.NotNil(t, session)
	assert.Equal(t, "maria", session.Username)
	require.NotNil(t, session.LoginTime)

	err := f.svc.SaveSession(ctx, "   ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLoadSessionLegacyAndCorruptValues(t *testing.T) {
	cases := []struct {
		raw      string
		expected *models.Session
	}{
		{raw: "alice", expected: &models.Session{Username: "alice"}},
		{raw: `"alice"`, expected: &models.Session{Username: "alice"}},
		{raw: `{"username":`, expected: nil},
		{raw: `{"username":""}`, expected: nil},
		{raw: `[1,2]`, expected: nil},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			f := newPersistenceFixture(t)
			ctx := context.Background()
			require.NoError(t, f.durable.Set(ctx, testScope.ClientID, models.StorageKeyUser, tc.raw))
			assert.Equal(t, tc.expected, f.svc.LoadSession(ctx))
		})
	}
}

func TestLastCohortSnapshot(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	assert.Nil(t, f.svc.LoadLastCohort(ctx))
	assert.ErrorIs(t, f.svc.SaveLastCohort(ctx, nil), appErrors.ErrValidation)

	require.NoError(t, f.svc.SaveLastCohort(ctx, &models.CohortSnapshot{Code: "2024-1", ProgramName: "ADSO"}))
	snapshot := f.svc.LoadLastCohort(ctx)
	require.NotNil(t, snapshot)
	assert.Equal(t, "2024-1", snapshot.Code)
	require.NotNil(t, snapshot.SavedAt)

	require.NoError(t, f.durable.Set(ctx, testScope.ClientID, models.StorageKeyCohort, "{oops"))
	assert.Nil(t, f.svc.LoadLastCohort(ctx))
}

func TestCurrentSelection(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	f.svc.SetCurrentSelection(ctx, "2758296")
	selection := f.svc.GetCurrentSelection(ctx)
	require.NotNil(t, selection)
	assert.Equal(t, "2758296", selection.CohortCode)

	f.svc.SetCurrentSelection(ctx, "")
	assert.Nil(t, f.svc.GetCurrentSelection(ctx))
}

func TestRecordSearchTermKeepsTenMostRecent(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		f.svc.RecordSearchTerm(ctx, fmt.Sprintf("term-%d", i))
	}

	history := f.svc.GetSearchHistory(ctx)
	require.Len(t, history, 10)
	assert.Equal(t, "term-11", history[0].Term)
	assert.Equal(t, "term-2", history[9].Term)
}

func TestRecordSearchTermDeduplicates(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	f.svc.RecordSearchTerm(ctx, "ana")
	f.svc.RecordSearchTerm(ctx, "luis")
	first := f.svc.GetSearchHistory(ctx)
	f.svc.RecordSearchTerm(ctx, "  ana ")
	f.svc.RecordSearchTerm(ctx, "   ")

	history := f.svc.GetSearchHistory(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, "ana", history[0].Term)
	assert.Equal(t, "luis", history[1].Term)
	assert.True(t, history[0].Timestamp.After(first[1].Timestamp))
}

func TestGetSearchHistoryCorrupt(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.Set(ctx, testScope.Key(), models.StorageKeySearchHistory, "not json"))

	history := f.svc.GetSearchHistory(ctx)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestClearSessionRemovesAllKeys(t *testing.T) {
	f := newPersistenceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveSession(ctx, "maria"))
	require.NoError(t, f.svc.SaveLastCohort(ctx, &models.CohortSnapshot{Code: "1"}))
	f.svc.SetCurrentSelection(ctx, "1")
	f.svc.RecordSearchTerm(ctx, "ana")

	info := f.svc.StorageInfo(ctx)
	assert.Equal(t, 2, info.Durable.Items)
	assert.Equal(t, 2, info.Session.Items)

	f.svc.ClearSession(ctx)

	for _, key := range allStorageKeys {
		_, ok, _ := f.durable.Get(ctx, testScope.ClientID, key)
		assert.False(t, ok, key)
		_, ok, _ = f.session.Get(ctx, testScope.Key(), key)
		assert.False(t, ok, key)
	}
	info = f.svc.StorageInfo(ctx)
	assert.Zero(t, info.Durable.Items)
	assert.Zero(t, info.Session.Items)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, string, string) error { return errors.New("store down") }
func (failingStore) Delete(context.Context, string, ...string) error  { return errors.New("store down") }
func (failingStore) Usage(context.Context, string) (models.StoreUsage, error) {
	return models.StoreUsage{}, errors.New("store down")
}

func TestPersistenceSwallowsStoreFailures(t *testing.T) {
	svc := NewPersistenceService(testScope, PersistenceOptions{Durable: failingStore{}, Session: failingStore{}})
	ctx := context.Background()

	assert.NoError(t, svc.SaveSession(ctx, "maria"))
	assert.Nil(t, svc.LoadSession(ctx))
	assert.Empty(t, svc.GetSearchHistory(ctx))
	svc.ClearSession(ctx)
	assert.Equal(t, models.StorageInfo{}, svc.StorageInfo(ctx))
}
