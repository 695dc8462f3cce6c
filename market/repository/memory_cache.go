package repository

import (
	"context"
	"sync"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
)

// MemoryCache is the in-process ICacheRepository. It honors the same
// last-writer-by-fetched_at rule as the sqlite store but persists
// nothing; tests and cache-less runs use it.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[domain.CacheKey]domain.CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[domain.CacheKey]domain.CacheEntry)}
}

func (r *MemoryCache) Init(ctx context.Context) error { return nil }

func (r *MemoryCache) Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[key]
	return entry, ok, nil
}

func (r *MemoryCache) GetMany(ctx context.Context, keys []domain.CacheKey) (map[domain.CacheKey]domain.CacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.CacheKey]domain.CacheEntry, len(keys))
	for _, key := range keys {
		if entry, ok := r.entries[key]; ok {
			out[key] = entry
		}
	}
	return out, nil
}

func (r *MemoryCache) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[entry.Key]; ok && entry.FetchedAt.Before(prev.FetchedAt) {
		// A slower write racing a fresher one loses.
		return nil
	}
	entry.LastError = ""
	r.entries[entry.Key] = entry
	return nil
}

func (r *MemoryCache) RecordError(ctx context.Context, key domain.CacheKey, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[key]
	entry.Key = key
	entry.LastError = msg
	r.entries[key] = entry
	return nil
}

func (r *MemoryCache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for key, entry := range r.entries {
		if !entry.FetchedAt.IsZero() && entry.FetchedAt.Before(cutoff) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (r *MemoryCache) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[domain.CacheKey]domain.CacheEntry)
	return nil
}

func (r *MemoryCache) Stats(ctx context.Context) (StoreStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := StoreStats{EntriesByKind: make(map[string]int64)}
	for key, entry := range r.entries {
		stats.TotalEntries++
		stats.EntriesByKind[string(key.Kind)]++
		if entry.LastError != "" {
			stats.ErrorEntries++
		}
		if entry.FetchedAt.IsZero() {
			continue
		}
		t := entry.FetchedAt
		if stats.OldestFetch == nil || t.Before(*stats.OldestFetch) {
			stats.OldestFetch = &t
		}
		if stats.NewestFetch == nil || t.After(*stats.NewestFetch) {
			stats.NewestFetch = &t
		}
	}
	stats.HumanSize = "0 B"
	return stats, nil
}

func (r *MemoryCache) Close() error { return nil }
