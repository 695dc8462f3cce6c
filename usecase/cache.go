package usecase

import (
	"context"
	"time"

	domainCache "github.com/andriy-git/stocksTUI/domains/cache"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type cacheService struct {
	store         repository.ICacheRepository
	retention     time.Duration
	pruneInterval time.Duration
}

// NewCacheService builds the operator surface over the market cache.
// retention is how long entries live before the sweep removes them;
// pruneInterval is how often the background sweep runs.
func NewCacheService(store repository.ICacheRepository, retention, pruneInterval time.Duration) domainCache.ICacheUsecase {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if pruneInterval <= 0 {
		pruneInterval = 6 * time.Hour
	}
	return &cacheService{store: store, retention: retention, pruneInterval: pruneInterval}
}

func (s *cacheService) Stats(ctx context.Context) (repository.StoreStats, error) {
	return s.store.Stats(ctx)
}

func (s *cacheService) Clear(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	logrus.Info("[CACHE] market cache cleared by operator")
	return nil
}

func (s *cacheService) Prune(ctx context.Context, olderThan time.Duration) (domainCache.PruneResult, error) {
	if olderThan <= 0 {
		olderThan = s.retention
	}
	removed, err := s.store.Prune(ctx, olderThan)
	if err != nil {
		return domainCache.PruneResult{}, err
	}
	if removed > 0 {
		logrus.Infof("[CACHE] pruned %d entries older than %s", removed, humanize.Time(time.Now().Add(-olderThan)))
	}
	return domainCache.PruneResult{Removed: removed, OlderThan: olderThan}, nil
}

func (s *cacheService) StartBackgroundPrune(ctx context.Context) {
	logrus.Infof("[CACHE] starting background prune loop (interval: %s, retention: %s)",
		s.pruneInterval, s.retention)

	// Run once at start so a long-stopped process catches up.
	go func() {
		if _, err := s.Prune(ctx, s.retention); err != nil {
			logrus.WithError(err).Warn("[CACHE] initial prune failed")
		}
	}()

	go func() {
		ticker := time.NewTicker(s.pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Prune(ctx, s.retention); err != nil {
					logrus.WithError(err).Warn("[CACHE] scheduled prune failed")
				}
			}
		}
	}()
}
