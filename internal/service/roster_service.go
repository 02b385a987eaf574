package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

const rosterCacheKey = "records"

// RosterFetcher retrieves the normalized roster from upstream.
type RosterFetcher interface {
	Fetch(ctx context.Context) ([]models.Record, error)
}

// RosterService is the fail-soft boundary around the upstream feed.
type RosterService struct {
	fetcher  RosterFetcher
	cache    *CacheService
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
	group    singleflight.Group
}

// NewRosterService constructs the service. cache and metrics may be nil.
func NewRosterService(fetcher RosterFetcher, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{fetcher: fetcher, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// FetchRoster always returns a non-nil slice. On failure the slice is empty
// and the error tells the caller that the roster could not be loaded, which
// is not the same as an empty roster.
//
// Concurrent callers share one upstream request. The shared request is
// detached from the caller that started it, so a cancelled caller only stops
// waiting and never fails the others.
func (s *RosterService) FetchRoster(ctx context.Context) ([]models.Record, error) {
	start := time.Now()

	var cached []models.Record
	if hit, _ := s.cache.Get(ctx, rosterCacheKey, &cached); hit && cached != nil {
		s.metrics.ObserveRosterFetch(FetchOutcomeCached, len(cached), time.Since(start))
		return cached, nil
	}

	flight := s.group.DoChan(rosterCacheKey, func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		s.logger.Warn("roster fetch abandoned", zap.Error(ctx.Err()), zap.Duration("duration", time.Since(start)))
		return []models.Record{}, appErrors.Wrap(ctx.Err(), appErrors.ErrFetchFailure.Code, appErrors.ErrFetchFailure.Status, "roster fetch abandoned")
	case result := <-flight:
		if result.Err != nil {
			return []models.Record{}, result.Err
		}
		records, _ := result.Val.([]models.Record)
		if records == nil {
			records = []models.Record{}
		}
		return records, nil
	}
}

// load runs once per flight. The fetcher's own timeout bounds it.
func (s *RosterService) load(ctx context.Context) ([]models.Record, error) {
	start := time.Now()

	records, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.metrics.ObserveRosterFetch(FetchOutcomeFailure, 0, time.Since(start))
		s.logger.Warn("roster fetch failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	s.metrics.ObserveRosterFetch(FetchOutcomeSuccess, len(records), time.Since(start))
	s.reportIncomplete(records)
	_ = s.cache.Set(ctx, rosterCacheKey, records, s.cacheTTL)

	s.logger.Info("roster loaded", zap.Int("records", len(records)), zap.Duration("duration", time.Since(start)))
	return records, nil
}

// Invalidate drops the cached roster so the next fetch goes upstream.
func (s *RosterService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, rosterCacheKey)
}

func (s *RosterService) reportIncomplete(records []models.Record) {
	incomplete := 0
	withoutCohort := 0
	for _, record := range records {
		if !record.HasCohort() {
			withoutCohort++
		}
		if !record.IsComplete() {
			incomplete++
		}
	}
	if incomplete > 0 {
		s.logger.Info("roster contains incomplete records",
			zap.Int("incomplete", incomplete),
			zap.Int("without_cohort", withoutCohort),
			zap.Int("total", len(records)))
	}
}
