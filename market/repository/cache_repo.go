package repository

import (
	"context"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
)

// StoreStats is what operational surfaces see of the cache file.
type StoreStats struct {
	TotalEntries  int64            `json:"total_entries"`
	EntriesByKind map[string]int64 `json:"entries_by_kind"`
	ErrorEntries  int64            `json:"error_entries"`
	OldestFetch   *time.Time       `json:"oldest_fetch,omitempty"`
	NewestFetch   *time.Time       `json:"newest_fetch,omitempty"`
	FileSizeBytes int64            `json:"file_size_bytes"`
	HumanSize     string           `json:"human_size"`
}

type ICacheRepository interface {
	Init(ctx context.Context) error

	// Reads. A missing key is (zero, false, nil), not an error.
	Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, bool, error)
	GetMany(ctx context.Context, keys []domain.CacheKey) (map[domain.CacheKey]domain.CacheEntry, error)

	// Writes. Upsert applies only when the incoming fetched_at is not
	// older than the stored one; success clears last_error. RecordError
	// touches last_error only, preserving any previous good value.
	Upsert(ctx context.Context, entry domain.CacheEntry) error
	RecordError(ctx context.Context, key domain.CacheKey, msg string) error

	// Maintenance.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (StoreStats, error)

	Close() error
}
