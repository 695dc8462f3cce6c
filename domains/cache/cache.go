package cache

import (
	"context"
	"time"

	"github.com/andriy-git/stocksTUI/market/repository"
)

// PruneResult reports one retention sweep over the market cache.
type PruneResult struct {
	Removed   int64         `json:"removed"`
	OlderThan time.Duration `json:"older_than"`
}

// ICacheUsecase is the operator surface over the market cache store:
// inspection, reset, and retention sweeps. It never touches the fetch
// pipeline; readers keep hitting the store while it works.
type ICacheUsecase interface {
	Stats(ctx context.Context) (repository.StoreStats, error)
	Clear(ctx context.Context) error
	Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error)

	// StartBackgroundPrune runs the retention sweep on an interval
	// until ctx is cancelled.
	StartBackgroundPrune(ctx context.Context)
}
