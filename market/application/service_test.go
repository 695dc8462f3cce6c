package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, provider domain.PriceProvider, store repository.ICacheRepository, oracle domain.CalendarOracle) *Service {
	t.Helper()
	svc := NewService(store, provider, oracle, ServiceOptions{
		DefaultExchange: "NYSE",
		MaxEntryAge:     48 * time.Hour,
		BatchSize:       10,
		Workers:         2,
		QueueSize:       16,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Start(ctx)
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = svc.Shutdown(shutdownCtx)
	})
	return svc
}

func TestService_GetQuoteReadsStoreOnly(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	svc := newTestService(t, provider, store, openOracle())
	ctx := context.Background()

	// Cold cache: a read is a miss and never triggers a fetch.
	_, _, err := svc.GetQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.Equal(t, int32(0), provider.batchCalls())

	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:       domain.NewCacheKey("AAPL", domain.KindQuote),
		Value:     []byte(`{"symbol":"AAPL","price":195.1,"previous_close":193.0}`),
		FetchedAt: time.Now().UTC(),
	}))

	quote, entry, err := svc.GetQuote(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 195.1, quote.Price)
	assert.True(t, entry.HasValue())
	assert.Equal(t, int32(0), provider.batchCalls(), "reads never hit the provider")
}

func TestService_GetQuoteCorruptPayloadIsAMiss(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	svc := newTestService(t, provider, store, openOracle())
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:       domain.NewCacheKey("AAPL", domain.KindQuote),
		Value:     []byte("{truncated"),
		FetchedAt: time.Now().UTC(),
	}))

	_, _, err := svc.GetQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestService_FetchFreshSkipsWarmEntries(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	oracle := &fakeOracle{state: domain.SessionState{Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}}
	svc := newTestService(t, provider, store, oracle)
	ctx := context.Background()

	marker := domain.SessionState{Exchange: "NYSE", Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}.Marker()
	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:           domain.NewCacheKey("AAPL", domain.KindQuote),
		Value:         []byte(`{"symbol":"AAPL","price":195.1}`),
		FetchedAt:     time.Now().UTC(),
		SessionMarker: marker,
	}))

	require.NoError(t, svc.FetchFresh(ctx, []string{"AAPL"}, []domain.DataKind{domain.KindQuote}))
	assert.Equal(t, int32(0), provider.batchCalls(), "a fresh entry must not refetch")

	// A cold kind for the same symbol does fetch.
	require.NoError(t, svc.FetchFresh(ctx, []string{"AAPL"}, []domain.DataKind{domain.KindMeta}))
	assert.Equal(t, int32(1), provider.batchCalls())
}

func TestService_SnapshotReportsStaleness(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	svc := newTestService(t, provider, store, openOracle())
	ctx := context.Background()

	marker := domain.SessionState{Exchange: "NYSE", Phase: domain.PhaseOpen, TradingDate: "2026-03-06"}.Marker()
	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:           domain.NewCacheKey("AAPL", domain.KindQuote),
		Value:         []byte(`{"symbol":"AAPL","price":195.1}`),
		FetchedAt:     time.Now().UTC(),
		SessionMarker: marker,
	}))

	snaps, err := svc.Snapshot(ctx, []string{"AAPL", "MISSING"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	warm := snaps[0]
	assert.Equal(t, "AAPL", warm.Key.Symbol)
	assert.True(t, warm.HasValue)
	require.NotNil(t, warm.Quote)
	assert.Equal(t, 195.1, warm.Quote.Price)
	// Session is trading, so even a fresh fetch reads as stale.
	assert.True(t, warm.Stale)
	assert.Equal(t, ReasonSessionActive, warm.Reason)

	cold := snaps[1]
	assert.False(t, cold.HasValue)
	assert.True(t, cold.Stale)
	assert.Equal(t, ReasonNoValue, cold.Reason)
	assert.Nil(t, cold.Quote)
}

func TestService_ExchangeForUsesCachedMeta(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	svc := newTestService(t, provider, store, openOracle())
	ctx := context.Background()

	// No meta cached yet: unknown.
	assert.Equal(t, "", svc.ExchangeFor("AAPL"))

	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:       domain.NewCacheKey("AAPL", domain.KindMeta),
		Value:     []byte(`{"symbol":"AAPL","exchange":"NASDAQ"}`),
		FetchedAt: time.Now().UTC(),
	}))
	assert.Equal(t, "NASDAQ", svc.ExchangeFor("aapl"))

	// Memoized: survives the meta entry disappearing.
	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, "NASDAQ", svc.ExchangeFor("AAPL"))
}

func TestService_SchedulerControls(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	svc := newTestService(t, provider, store, openOracle())

	assert.ErrorIs(t, svc.RefreshNow(false), domain.ErrSchedulerNotActive)

	require.NoError(t, svc.StartScheduler(context.Background()))
	assert.Equal(t, "ticking", svc.SchedulerStats().State)
	require.NoError(t, svc.RefreshNow(true))

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.StopScheduler(stopCtx))
	assert.Equal(t, "stopped", svc.SchedulerStats().State)
}

func TestService_SnapshotWithoutCalendarAnswer(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	oracle := &fakeOracle{err: errors.New("calendar feed down")}
	svc := newTestService(t, provider, store, oracle)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.CacheEntry{
		Key:           domain.NewCacheKey("AAPL", domain.KindQuote),
		Value:         []byte(`{"symbol":"AAPL","price":195.1}`),
		FetchedAt:     time.Now().UTC(),
		SessionMarker: "NYSE|2026-03-06|open",
	}))

	snaps, err := svc.Snapshot(ctx, []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	// No oracle answer means the verdict says so, not "session changed".
	assert.True(t, snaps[0].Stale)
	assert.Equal(t, ReasonCalendarUnavailable, snaps[0].Reason)
}
