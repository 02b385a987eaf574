package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/pkg/debounce"
)

// ViewerConfig tunes the coordinators created by ViewerService.
type ViewerConfig struct {
	SearchDebounce     time.Duration
	SearchMinChars     int
	SearchHistoryLimit int
	IdleTTL            time.Duration
}

// ViewerDeps are the collaborators shared by every coordinator.
type ViewerDeps struct {
	Roster    RosterLoader
	Auth      Authenticator
	Durable   KVStore
	Session   KVStore
	Metrics   *MetricsService
	Scheduler debounce.Scheduler
	Logger    *zap.Logger
	Now       func() time.Time
}

type viewerEntry struct {
	coordinator *Coordinator
	restored    sync.Once
}

// ViewerService keeps one Coordinator per client scope, creating them on
// first use and dropping idle ones.
type ViewerService struct {
	deps ViewerDeps
	cfg  ViewerConfig

	mu      sync.Mutex
	entries map[string]*viewerEntry
}

// NewViewerService constructs the registry.
func NewViewerService(deps ViewerDeps, cfg ViewerConfig) *ViewerService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &ViewerService{deps: deps, cfg: cfg, entries: make(map[string]*viewerEntry)}
}

// Coordinator returns the coordinator of scope. A new coordinator restores
// the persisted state before it is returned.
func (s *ViewerService) Coordinator(ctx context.Context, scope models.ClientScope) *Coordinator {
	s.mu.Lock()
	entry, ok := s.entries[scope.Key()]
	if !ok {
		entry = &viewerEntry{coordinator: s.newCoordinator(scope)}
		s.entries[scope.Key()] = entry
		s.deps.Metrics.SetActiveViewers(len(s.entries))
	}
	s.mu.Unlock()

	entry.restored.Do(func() {
		entry.coordinator.Restore(ctx)
	})
	return entry.coordinator
}

// Sweep closes coordinators idle for longer than the configured TTL and
// returns how many were removed.
func (s *ViewerService) Sweep() int {
	cutoff := s.deps.Now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var idle []*Coordinator
	for key, entry := range s.entries {
		if entry.coordinator.IdleSince().Before(cutoff) {
			idle = append(idle, entry.coordinator)
			delete(s.entries, key)
		}
	}
	s.deps.Metrics.SetActiveViewers(len(s.entries))
	s.mu.Unlock()

	for _, coordinator := range idle {
		coordinator.Close()
	}
	if len(idle) > 0 {
		s.deps.Logger.Debug("idle viewers removed", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Active returns the number of live coordinators.
func (s *ViewerService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ViewerService) newCoordinator(scope models.ClientScope) *Coordinator {
	logger := s.deps.Logger.With(zap.String("client_id", scope.ClientID), zap.String("tab_id", scope.TabID))
	persistence := NewPersistenceService(scope, PersistenceOptions{
		Durable:      s.deps.Durable,
		Session:      s.deps.Session,
		HistoryLimit: s.cfg.SearchHistoryLimit,
		Metrics:      s.deps.Metrics,
		Logger:       s.deps.Logger,
		Now:          s.deps.Now,
	})
	return NewCoordinator(CoordinatorOptions{
		Roster:         s.deps.Roster,
		Auth:           s.deps.Auth,
		Persistence:    persistence,
		Scheduler:      s.deps.Scheduler,
		SearchDebounce: s.cfg.SearchDebounce,
		SearchMinChars: s.cfg.SearchMinChars,
		Logger:         logger,
		Now:            s.deps.Now,
	})
}
