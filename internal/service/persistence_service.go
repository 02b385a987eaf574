package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

// KVStore is a string key-value store partitioned by scope.
type KVStore interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope string, keys ...string) error
	Usage(ctx context.Context, scope string) (models.StoreUsage, error)
}

const (
	storeDurable = "durable"
	storeSession = "session"

	defaultSearchHistoryLimit = 10
)

var allStorageKeys = []string{
	models.StorageKeyUser,
	models.StorageKeyCohort,
	models.StorageKeySelection,
	models.StorageKeySearchHistory,
}

// PersistenceOptions configures a PersistenceService.
type PersistenceOptions struct {
	Durable      KVStore
	Session      KVStore
	HistoryLimit int
	Metrics      *MetricsService
	Logger       *zap.Logger
	Now          func() time.Time
}

// PersistenceService stores the identity, last cohort, selection and search
// history of one client scope. Only validation failures are returned; store
// failures and corrupt slots are logged and read as absent.
type PersistenceService struct {
	durable      KVStore
	session      KVStore
	scope        models.ClientScope
	historyLimit int
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// NewPersistenceService binds the stores to scope.
func NewPersistenceService(scope models.ClientScope, opts PersistenceOptions) *PersistenceService {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultSearchHistoryLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PersistenceService{
		durable:      opts.Durable,
		session:      opts.Session,
		scope:        scope,
		historyLimit: limit,
		metrics:      opts.Metrics,
		logger:       logger.With(zap.String("client_id", scope.ClientID), zap.String("tab_id", scope.TabID)),
		now:          now,
	}
}

// Scope returns the bound client scope.
func (s *PersistenceService) Scope() models.ClientScope {
	return s.scope
}

// SaveSession persists the logged-in user.
func (s *PersistenceService) SaveSession(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return appErrors.Clone(appErrors.ErrValidation, "el nombre de usuario es obligatorio")
	}
	loginTime := s.now().UTC()
	s.write(ctx, storeDurable, models.StorageKeyUser, models.Session{Username: username, LoginTime: &loginTime})
	return nil
}

// LoadSession returns the saved user or nil. Values written by the legacy
// client, a JSON string or a bare username, load without a login time.
func (s *PersistenceService) LoadSession(ctx context.Context) *models.Session {
	raw, ok := s.read(ctx, storeDurable, models.StorageKeyUser)
	if !ok {
		return nil
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err == nil {
		session.Username = strings.TrimSpace(session.Username)
		if session.Username == "" {
			s.corrupt(models.StorageKeyUser, nil)
			return nil
		}
		return &session
	}

	var legacy string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return legacySession(legacy)
	}

	if isBareUsername(raw) {
		return legacySession(raw)
	}

	s.corrupt(models.StorageKeyUser, nil)
	return nil
}

// SaveLastCohort persists the snapshot of the last viewed cohort.
func (s *PersistenceService) SaveLastCohort(ctx context.Context, snapshot *models.CohortSnapshot) error {
	if snapshot == nil {
		return appErrors.Clone(appErrors.ErrValidation, "la información de la ficha es obligatoria")
	}
	stamped := *snapshot
	savedAt := s.now().UTC()
	stamped.SavedAt = &savedAt
	s.write(ctx, storeDurable, models.StorageKeyCohort, stamped)
	return nil
}

// LoadLastCohort returns the last saved snapshot or nil.
func (s *PersistenceService) LoadLastCohort(ctx context.Context) *models.CohortSnapshot {
	var snapshot models.CohortSnapshot
	if !s.readJSON(ctx, storeDurable, models.StorageKeyCohort, &snapshot) {
		return nil
	}
	if strings.TrimSpace(snapshot.Code) == "" {
		s.corrupt(models.StorageKeyCohort, nil)
		return nil
	}
	return &snapshot
}

// SetCurrentSelection records the cohort selected in this tab. An empty code
// clears it.
func (s *PersistenceService) SetCurrentSelection(ctx context.Context, code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		s.remove(ctx, storeSession, models.StorageKeySelection)
		return
	}
	s.write(ctx, storeSession, models.StorageKeySelection, models.Selection{CohortCode: code, SelectedAt: s.now().UTC()})
}

// GetCurrentSelection returns the tab selection or nil.
func (s *PersistenceService) GetCurrentSelection(ctx context.Context) *models.Selection {
	var selection models.Selection
	if !s.readJSON(ctx, storeSession, models.StorageKeySelection, &selection) {
		return nil
	}
	if strings.TrimSpace(selection.CohortCode) == "" {
		return nil
	}
	return &selection
}

// RecordSearchTerm moves term to the front of the history, dropping older
// duplicates and anything past the limit.
func (s *PersistenceService) RecordSearchTerm(ctx context.Context, term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}

	history := s.GetSearchHistory(ctx)
	updated := make([]models.SearchEntry, 0, len(history)+1)
	updated = append(updated, models.SearchEntry{Term: term, Timestamp: s.now().UTC()})
	for _, entry := range history {
		if entry.Term == term {
			continue
		}
		updated = append(updated, entry)
	}
	if len(updated) > s.historyLimit {
		updated = updated[:s.historyLimit]
	}
	s.write(ctx, storeSession, models.StorageKeySearchHistory, updated)
}

// GetSearchHistory returns the history, most recent first.
func (s *PersistenceService) GetSearchHistory(ctx context.Context) []models.SearchEntry {
	var history []models.SearchEntry
	if !s.readJSON(ctx, storeSession, models.StorageKeySearchHistory, &history) || history == nil {
		return []models.SearchEntry{}
	}
	return history
}

// ClearSession removes every slot from both stores.
func (s *PersistenceService) ClearSession(ctx context.Context) {
	s.remove(ctx, storeDurable, allStorageKeys...)
	s.remove(ctx, storeSession, allStorageKeys...)
}

// StorageInfo reports how many slots each store holds for this scope.
func (s *PersistenceService) StorageInfo(ctx context.Context) models.StorageInfo {
	var info models.StorageInfo
	if usage, err := s.durable.Usage(ctx, s.durableScope()); err != nil {
		s.logger.Warn("durable storage usage failed", zap.Error(err))
	} else {
		info.Durable = usage
	}
	if usage, err := s.session.Usage(ctx, s.sessionScope()); err != nil {
		s.logger.Warn("session storage usage failed", zap.Error(err))
	} else {
		info.Session = usage
	}
	return info
}

func (s *PersistenceService) durableScope() string { return s.scope.ClientID }
func (s *PersistenceService) sessionScope() string { return s.scope.Key() }

func (s *PersistenceService) target(store string) (KVStore, string) {
	if store == storeSession {
		return s.session, s.sessionScope()
	}
	return s.durable, s.durableScope()
}

func (s *PersistenceService) read(ctx context.Context, store, key string) (string, bool) {
	kv, scope := s.target(store)
	start := time.Now()
	value, ok, err := kv.Get(ctx, scope, key)
	s.metrics.ObserveStorageOperation(store, "get", time.Since(start))
	if err != nil {
		s.logger.Warn("storage read failed", zap.String("store", store), zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, ok
}

func (s *PersistenceService) readJSON(ctx context.Context, store, key string, dest interface{}) bool {
	raw, ok := s.read(ctx, store, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.corrupt(key, err)
		return false
	}
	return true
}

func (s *PersistenceService) write(ctx context.Context, store, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("storage encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	kv, scope := s.target(store)
	start := time.Now()
	err = kv.Set(ctx, scope, key, string(payload))
	s.metrics.ObserveStorageOperation(store, "set", time.Since(start))
	if err != nil {
		s.logger.Warn("storage write failed", zap.String("store", store), zap.String("key", key), zap.Error(err))
	}
}

func (s *PersistenceService) remove(ctx context.Context, store string, keys ...string) {
	kv, scope := s.target(store)
	start := time.Now()
	err := kv.Delete(ctx, scope, keys...)
	s.metrics.ObserveStorageOperation(store, "delete", time.Since(start))
	if err != nil {
		s.logger.Warn("storage delete failed", zap.String("store", store), zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *PersistenceService) corrupt(key string, err error) {
	wrapped := appErrors.Wrap(err, appErrors.ErrStorageCorruption.Code, appErrors.ErrStorageCorruption.Status, appErrors.ErrStorageCorruption.Message)
	s.logger.Warn("ignoring corrupt storage slot", zap.String("key", key), zap.Error(wrapped))
}

func legacySession(username string) *models.Session {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	return &models.Session{Username: username}
}

// isBareUsername accepts raw values the legacy client stored without JSON
// encoding, rejecting anything that looks like broken JSON.
func isBareUsername(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return false
	}
	return true
}
