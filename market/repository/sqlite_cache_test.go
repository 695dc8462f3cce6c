package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market_cache.db")
	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Init(context.Background()))
	t.Cleanup(func() { cache.Close() })
	return cache
}

func quoteEntry(symbol string, fetchedAt time.Time, price string) domain.CacheEntry {
	return domain.CacheEntry{
		Key:           domain.NewCacheKey(symbol, domain.KindQuote),
		Value:         []byte(`{"symbol":"` + symbol + `","price":` + price + `}`),
		FetchedAt:     fetchedAt,
		SessionMarker: "NYSE|2026-03-06|open",
	}
}

func TestSQLiteCache_UpsertAndGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	fetchedAt := time.Date(2026, 3, 6, 15, 30, 0, 0, time.UTC)
	entry := quoteEntry("AAPL", fetchedAt, "195.10")
	require.NoError(t, cache.Upsert(ctx, entry))

	got, found, err := cache.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Key, got.Key)
	assert.JSONEq(t, string(entry.Value), string(got.Value))
	assert.True(t, got.FetchedAt.Equal(fetchedAt))
	assert.Equal(t, "NYSE|2026-03-06|open", got.SessionMarker)
	assert.Empty(t, got.LastError)
}

func TestSQLiteCache_GetMissIsNotAnError(t *testing.T) {
	cache := newTestCache(t)

	_, found, err := cache.Get(context.Background(), domain.NewCacheKey("NOPE", domain.KindQuote))
	require.NoError(t, err)
	assert.False(t, found)
}

// The later fetched_at wins regardless of write arrival order: a slow
// response from an older fetch must not clobber a fresher value.
func TestSQLiteCache_LastWriterByFetchedAt(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	t1 := time.Date(2026, 3, 6, 15, 30, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	key := domain.NewCacheKey("AAPL", domain.KindQuote)

	// Fresher write lands first, older write arrives late.
	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", t2, "196.00")))
	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", t1, "195.10")))

	got, found, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.FetchedAt.Equal(t2), "stale write must lose")
	quote, err := domain.ParseQuote(got.Value)
	require.NoError(t, err)
	assert.Equal(t, 196.00, quote.Price)

	// Equal fetched_at is accepted (>=), so a re-fetch at the same
	// instant can still repair a payload.
	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", t2, "196.50")))
	got, _, _ = cache.Get(ctx, key)
	quote, _ = domain.ParseQuote(got.Value)
	assert.Equal(t, 196.50, quote.Price)
}

func TestSQLiteCache_GetMany(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", now, "195.10")))
	require.NoError(t, cache.Upsert(ctx, quoteEntry("MSFT", now, "410.00")))

	keys := []domain.CacheKey{
		domain.NewCacheKey("AAPL", domain.KindQuote),
		domain.NewCacheKey("MSFT", domain.KindQuote),
		domain.NewCacheKey("MISSING", domain.KindQuote),
	}
	entries, err := cache.GetMany(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, keys[0])
	assert.Contains(t, entries, keys[1])
	assert.NotContains(t, entries, keys[2])
}

// RecordError keeps the previous value so readers can serve data with
// a staleness warning instead of nothing.
func TestSQLiteCache_RecordErrorPreservesValue(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	fetchedAt := time.Now().UTC().Add(-time.Hour)
	entry := quoteEntry("AAPL", fetchedAt, "195.10")
	require.NoError(t, cache.Upsert(ctx, entry))
	require.NoError(t, cache.RecordError(ctx, entry.Key, "provider: NETWORK: timeout"))

	got, found, err := cache.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.HasValue(), "error must not wipe the cached value")
	assert.True(t, got.FetchedAt.Equal(fetchedAt))
	assert.Equal(t, "provider: NETWORK: timeout", got.LastError)

	// A later successful upsert clears the error.
	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", time.Now().UTC(), "196.00")))
	got, _, _ = cache.Get(ctx, entry.Key)
	assert.Empty(t, got.LastError)
}

func TestSQLiteCache_RecordErrorOnColdKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key := domain.NewCacheKey("BADTICKER", domain.KindQuote)
	require.NoError(t, cache.RecordError(ctx, key, "provider: SYMBOL_NOT_FOUND"))

	got, found, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.HasValue())
	assert.Equal(t, "provider: SYMBOL_NOT_FOUND", got.LastError)
}

func TestSQLiteCache_Prune(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	fresh := time.Now().UTC()
	require.NoError(t, cache.Upsert(ctx, quoteEntry("OLD", old, "1.00")))
	require.NoError(t, cache.Upsert(ctx, quoteEntry("FRESH", fresh, "2.00")))

	removed, err := cache.Prune(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, found, _ := cache.Get(ctx, domain.NewCacheKey("OLD", domain.KindQuote))
	assert.False(t, found)
	_, found, _ = cache.Get(ctx, domain.NewCacheKey("FRESH", domain.KindQuote))
	assert.True(t, found)
}

func TestSQLiteCache_Reset(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", time.Now().UTC(), "195.10")))
	require.NoError(t, cache.Reset(ctx))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestSQLiteCache_Stats(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", now, "195.10")))
	require.NoError(t, cache.Upsert(ctx, domain.CacheEntry{
		Key:       domain.NewCacheKey("AAPL", domain.KindMeta),
		Value:     []byte(`{"symbol":"AAPL","exchange":"NASDAQ"}`),
		FetchedAt: now,
	}))
	require.NoError(t, cache.RecordError(ctx, domain.NewCacheKey("BAD", domain.KindQuote), "boom"))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.EntriesByKind[string(domain.KindQuote)])
	assert.Equal(t, int64(1), stats.EntriesByKind[string(domain.KindMeta)])
	assert.Equal(t, int64(1), stats.ErrorEntries)
	require.NotNil(t, stats.NewestFetch)
	assert.NotEmpty(t, stats.HumanSize)
}

// Deleting the db file at runtime must not wedge the store: the next
// write rebuilds the schema and lands.
func TestSQLiteCache_RecoversFromDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market_cache.db")
	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()
	require.NoError(t, cache.Init(ctx))

	require.NoError(t, cache.Upsert(ctx, quoteEntry("AAPL", time.Now().UTC(), "195.10")))
	require.NoError(t, os.Remove(path))

	entry := quoteEntry("MSFT", time.Now().UTC(), "410.00")
	require.NoError(t, cache.Upsert(ctx, entry))

	got, found, err := cache.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.HasValue())
}

// Reads against a store whose schema is gone fail open with empty
// results instead of erroring the whole pipeline.
func TestSQLiteCache_FailOpenReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uninitialized.db")
	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	entries, err := cache.GetMany(ctx, []domain.CacheKey{domain.NewCacheKey("AAPL", domain.KindQuote)})
	require.NoError(t, err)
	assert.Empty(t, entries)

	removed, err := cache.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, cache.Reset(ctx))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestSQLiteCache_GetManyChunksLargeKeySets(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	// More than two chunks' worth of keys, so the sweep has to split
	// the query instead of building one giant OR expression.
	total := 2*getManyChunkSize + 7
	fetchedAt := time.Date(2026, 3, 6, 15, 30, 0, 0, time.UTC)
	keys := make([]domain.CacheKey, 0, total+1)
	for i := 0; i < total; i++ {
		entry := quoteEntry(fmt.Sprintf("SYM%04d", i), fetchedAt, "10.00")
		require.NoError(t, cache.Upsert(ctx, entry))
		keys = append(keys, entry.Key)
	}
	keys = append(keys, domain.NewCacheKey("MISSING", domain.KindQuote))

	got, err := cache.GetMany(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, total)
	assert.Contains(t, got, domain.NewCacheKey("SYM0000", domain.KindQuote))
	assert.Contains(t, got, domain.NewCacheKey(fmt.Sprintf("SYM%04d", total-1), domain.KindQuote))
	assert.NotContains(t, got, domain.NewCacheKey("MISSING", domain.KindQuote))
}
