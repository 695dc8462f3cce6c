package application

import (
	"context"
	"testing"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, provider domain.PriceProvider, store repository.ICacheRepository, oracle domain.CalendarOracle, cadence CadenceConfig, tracked []string) *Scheduler {
	t.Helper()
	coord := NewCoordinator(provider, store, oracle, CoordinatorOptions{
		BatchSize: 10, Workers: 2, QueueSize: 16,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord.Start(ctx)
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = coord.Close(closeCtx)
	})

	policy := NewExpiryPolicy(48 * time.Hour)
	return NewScheduler(coord, store, oracle, policy, cadence,
		func(ctx context.Context) []string { return tracked },
		func(string) string { return "NYSE" }, "NYSE")
}

func TestScheduler_Lifecycle(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	sched := newTestScheduler(t, provider, store, openOracle(), DefaultCadence(), nil)

	assert.Equal(t, "idle", sched.State())
	require.NoError(t, sched.Start(context.Background()))
	assert.Equal(t, "ticking", sched.State())

	// Double start is rejected.
	assert.ErrorIs(t, sched.Start(context.Background()), domain.ErrSchedulerRunning)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))
	assert.Equal(t, "stopped", sched.State())

	// Stop on a stopped scheduler is rejected, restart is allowed.
	assert.ErrorIs(t, sched.Stop(stopCtx), domain.ErrSchedulerNotActive)
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Stop(stopCtx))
}

func TestScheduler_RefreshNowRequiresTicking(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	sched := newTestScheduler(t, provider, store, openOracle(), DefaultCadence(), []string{"AAPL"})

	assert.ErrorIs(t, sched.RefreshNow(false), domain.ErrSchedulerNotActive)
}

func TestScheduler_FirstTickDemandsColdKeys(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	sched := newTestScheduler(t, provider, store, openOracle(), DefaultCadence(), []string{"AAPL", "MSFT"})

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	// Quote and meta per symbol: 4 keys on the first sweep.
	require.Eventually(t, func() bool {
		stats := sched.Stats()
		return stats.TotalTicks >= 1 && stats.LastDemanded == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, sched.Stats().TrackedCount)
}

func TestScheduler_SoftRefreshSkipsFreshEntries(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	// Everything closed: fetched-now entries stay fresh.
	oracle := &fakeOracle{state: domain.SessionState{Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}}
	sched := newTestScheduler(t, provider, store, oracle, DefaultCadence(), []string{"AAPL"})

	marker := domain.SessionState{Exchange: "NYSE", Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}.Marker()
	now := time.Now().UTC()
	for _, kind := range []domain.DataKind{domain.KindQuote, domain.KindMeta} {
		require.NoError(t, store.Upsert(context.Background(), domain.CacheEntry{
			Key:           domain.NewCacheKey("AAPL", kind),
			Value:         []byte(`{"symbol":"AAPL"}`),
			FetchedAt:     now,
			SessionMarker: marker,
		}))
	}

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return sched.Stats().TotalTicks >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, sched.Stats().LastDemanded, "fresh entries must not be re-demanded")
	assert.Equal(t, int32(0), provider.batchCalls())
}

func TestScheduler_ForceRefreshDemandsEverything(t *testing.T) {
	provider := &fakeProvider{}
	store := repository.NewMemoryCache()
	oracle := &fakeOracle{state: domain.SessionState{Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}}
	sched := newTestScheduler(t, provider, store, oracle, DefaultCadence(), []string{"AAPL"})

	marker := domain.SessionState{Exchange: "NYSE", Phase: domain.PhaseClosed, TradingDate: "2026-03-09"}.Marker()
	now := time.Now().UTC()
	for _, kind := range []domain.DataKind{domain.KindQuote, domain.KindMeta} {
		require.NoError(t, store.Upsert(context.Background(), domain.CacheEntry{
			Key:           domain.NewCacheKey("AAPL", kind),
			Value:         []byte(`{"symbol":"AAPL"}`),
			FetchedAt:     now,
			SessionMarker: marker,
		}))
	}

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return sched.Stats().TotalTicks >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, sched.Stats().LastDemanded)

	require.NoError(t, sched.RefreshNow(true))
	require.Eventually(t, func() bool {
		return sched.Stats().LastDemanded == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_NextInterval(t *testing.T) {
	cadence := CadenceConfig{
		MinInterval:    5 * time.Second,
		BaseInterval:   30 * time.Second,
		MaxInterval:    30 * time.Minute,
		BoundaryWindow: 2 * time.Minute,
	}
	now := time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state domain.SessionState
		want  time.Duration
	}{
		{
			name: "session running uses base interval",
			state: domain.SessionState{
				Phase:       domain.PhaseOpen,
				TradingDate: "2026-03-06",
				NextClose:   now.Add(6 * time.Hour),
			},
			want: 30 * time.Second,
		},
		{
			name: "inside boundary window uses min interval",
			state: domain.SessionState{
				Phase:       domain.PhaseClosed,
				TradingDate: "2026-03-09",
				NextOpen:    now.Add(90 * time.Second),
			},
			want: 5 * time.Second,
		},
		{
			name: "everything dark uses max interval",
			state: domain.SessionState{
				Phase:       domain.PhaseClosed,
				TradingDate: "2026-03-09",
				NextOpen:    now.Add(48 * time.Hour),
			},
			want: 30 * time.Minute,
		},
		{
			name: "sleep capped at the boundary window edge",
			state: domain.SessionState{
				Phase:       domain.PhaseClosed,
				TradingDate: "2026-03-09",
				NextOpen:    now.Add(10 * time.Minute),
			},
			want: 8 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			store := repository.NewMemoryCache()
			oracle := &fakeOracle{state: tt.state}
			sched := newTestScheduler(t, provider, store, oracle, cadence, []string{"AAPL"})
			got := sched.nextInterval(context.Background(), now)
			assert.Equal(t, tt.want, got)
		})
	}
}
