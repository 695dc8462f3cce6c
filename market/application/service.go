package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/andriy-git/stocksTUI/pkg/fetchworker"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ServiceOptions bundles the wiring knobs for the market service.
type ServiceOptions struct {
	DefaultExchange string
	MaxEntryAge     time.Duration
	Cadence         CadenceConfig
	BatchSize       int
	FetchTimeout    time.Duration
	Workers         int
	QueueSize       int
	// Tracked feeds the scheduler its symbol universe, usually the
	// watchlist usecase.
	Tracked func(ctx context.Context) []string
}

// EntrySnapshot is a cache entry dressed for operational surfaces.
type EntrySnapshot struct {
	Key        domain.CacheKey `json:"key"`
	HasValue   bool            `json:"has_value"`
	FetchedAt  time.Time       `json:"fetched_at,omitempty"`
	Age        string          `json:"age,omitempty"`
	Marker     string          `json:"session_marker,omitempty"`
	Stale      bool            `json:"stale"`
	Reason     string          `json:"reason"`
	LastError  string          `json:"last_error,omitempty"`
	Quote      *domain.Quote   `json:"quote,omitempty"`
	ParseError string          `json:"parse_error,omitempty"`
}

// Service is the market facade: cache-backed reads that never wait on
// the network, plus the demand/refresh controls. Readers and the
// refresh pipeline only meet at the store.
type Service struct {
	store       repository.ICacheRepository
	provider    domain.PriceProvider
	oracle      domain.CalendarOracle
	policy      ExpiryPolicy
	coordinator *Coordinator
	scheduler   *Scheduler
	defaultExch string

	exchMu   sync.RWMutex
	exchMemo map[string]string
}

func NewService(store repository.ICacheRepository, provider domain.PriceProvider, oracle domain.CalendarOracle, opts ServiceOptions) *Service {
	if opts.DefaultExchange == "" {
		opts.DefaultExchange = "NYSE"
	}
	if opts.Tracked == nil {
		opts.Tracked = func(context.Context) []string { return nil }
	}

	s := &Service{
		store:       store,
		provider:    provider,
		oracle:      oracle,
		policy:      NewExpiryPolicy(opts.MaxEntryAge),
		defaultExch: opts.DefaultExchange,
		exchMemo:    make(map[string]string),
	}

	s.coordinator = NewCoordinator(provider, store, oracle, CoordinatorOptions{
		BatchSize:       opts.BatchSize,
		FetchTimeout:    opts.FetchTimeout,
		Workers:         opts.Workers,
		QueueSize:       opts.QueueSize,
		DefaultExchange: opts.DefaultExchange,
		ExchangeFor:     s.ExchangeFor,
	})
	s.scheduler = NewScheduler(s.coordinator, store, oracle, s.policy, opts.Cadence,
		opts.Tracked, s.ExchangeFor, opts.DefaultExchange)
	return s
}

// Start brings up the fetch pipeline. The scheduler starts separately
// so one-shot commands can fetch without a ticking loop.
func (s *Service) Start(ctx context.Context) {
	s.coordinator.Start(ctx)
}

// Shutdown stops the scheduler if it is ticking, then closes the
// coordinator so in-flight fetches resolve or cancel.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.scheduler.Stop(ctx); err != nil && err != domain.ErrSchedulerNotActive {
		return err
	}
	return s.coordinator.Close(ctx)
}

// ExchangeFor resolves a symbol's venue from cached meta, memoized.
// Unknown symbols fall back to the default exchange.
func (s *Service) ExchangeFor(symbol string) string {
	symbol = domain.NormalizeSymbol(symbol)

	s.exchMu.RLock()
	ex, ok := s.exchMemo[symbol]
	s.exchMu.RUnlock()
	if ok {
		return ex
	}

	entry, found, err := s.store.Get(context.Background(), domain.NewCacheKey(symbol, domain.KindMeta))
	if err != nil || !found || !entry.HasValue() {
		return ""
	}
	info, err := domain.ParseTickerInfo(entry.Value)
	if err != nil || info.Exchange == "" {
		return ""
	}

	s.exchMu.Lock()
	s.exchMemo[symbol] = info.Exchange
	s.exchMu.Unlock()
	return info.Exchange
}

// GetQuote reads a quote straight from the store.
func (s *Service) GetQuote(ctx context.Context, symbol string) (domain.Quote, domain.CacheEntry, error) {
	key := domain.NewCacheKey(symbol, domain.KindQuote)
	entry, found, err := s.store.Get(ctx, key)
	if err != nil {
		return domain.Quote{}, domain.CacheEntry{}, err
	}
	if !found || !entry.HasValue() {
		return domain.Quote{}, entry, domain.ErrEntryNotFound
	}
	quote, err := domain.ParseQuote(entry.Value)
	if err != nil {
		// Corrupt payload reads as a miss; the next sweep refetches it.
		logrus.WithError(err).Warnf("[MARKET] corrupt quote payload for %s", key.Symbol)
		return domain.Quote{}, entry, domain.ErrEntryNotFound
	}
	return quote, entry, nil
}

func (s *Service) GetTickerInfo(ctx context.Context, symbol string) (domain.TickerInfo, error) {
	entry, found, err := s.store.Get(ctx, domain.NewCacheKey(symbol, domain.KindMeta))
	if err != nil {
		return domain.TickerInfo{}, err
	}
	if !found || !entry.HasValue() {
		return domain.TickerInfo{}, domain.ErrEntryNotFound
	}
	return domain.ParseTickerInfo(entry.Value)
}

func (s *Service) GetNews(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	entry, found, err := s.store.Get(ctx, domain.NewCacheKey(symbol, domain.KindNews))
	if err != nil {
		return nil, err
	}
	if !found || !entry.HasValue() {
		return nil, domain.ErrEntryNotFound
	}
	return domain.ParseNews(entry.Value)
}

// Snapshot returns the operational view of the given symbols' quote
// entries: value, age, staleness verdict, last error.
func (s *Service) Snapshot(ctx context.Context, symbols []string) ([]EntrySnapshot, error) {
	now := time.Now().UTC()
	keys := make([]domain.CacheKey, 0, len(symbols))
	for _, sym := range symbols {
		keys = append(keys, domain.NewCacheKey(sym, domain.KindQuote))
	}
	entries, err := s.store.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]EntrySnapshot, 0, len(keys))
	for _, key := range keys {
		entry, found := entries[key]
		if !found {
			entry = domain.CacheEntry{Key: key}
		}
		snap := EntrySnapshot{
			Key:       key,
			HasValue:  entry.HasValue(),
			Marker:    entry.SessionMarker,
			LastError: entry.LastError,
		}
		if entry.HasValue() {
			snap.FetchedAt = entry.FetchedAt
			snap.Age = humanize.Time(entry.FetchedAt)
			if quote, err := domain.ParseQuote(entry.Value); err == nil {
				snap.Quote = &quote
			} else {
				snap.ParseError = err.Error()
			}
		}
		snap.Stale, snap.Reason = s.evaluate(entry, now)
		out = append(out, snap)
	}
	return out, nil
}

func (s *Service) evaluate(entry domain.CacheEntry, now time.Time) (bool, string) {
	if !entry.HasValue() {
		return true, ReasonNoValue
	}
	exchange := s.ExchangeFor(entry.Key.Symbol)
	if exchange == "" {
		exchange = s.defaultExch
	}
	atFetch, err := s.oracle.SessionState(exchange, entry.FetchedAt)
	if err != nil {
		return true, ReasonCalendarUnavailable
	}
	atNow, err := s.oracle.SessionState(exchange, now)
	if err != nil {
		return true, ReasonCalendarUnavailable
	}
	return s.policy.Evaluate(entry, now, atFetch, atNow)
}

// Demand fires fetches for the given keys without waiting.
func (s *Service) Demand(ctx context.Context, keys []domain.CacheKey) (map[domain.CacheKey]*Flight, error) {
	return s.coordinator.Demand(ctx, keys)
}

// FetchFresh demands the stale subset of the requested keys and waits
// for the flights to land. One-shot CLI and MCP callers use this to
// guarantee post-call reads hit warm data.
func (s *Service) FetchFresh(ctx context.Context, symbols []string, kinds []domain.DataKind) error {
	now := time.Now().UTC()
	keys := make([]domain.CacheKey, 0, len(symbols)*len(kinds))
	for _, sym := range symbols {
		for _, kind := range kinds {
			keys = append(keys, domain.NewCacheKey(sym, kind))
		}
	}

	entries, err := s.store.GetMany(ctx, keys)
	if err != nil {
		return fmt.Errorf("read cache before fetch: %w", err)
	}
	var demand []domain.CacheKey
	for _, key := range keys {
		entry, ok := entries[key]
		if !ok {
			demand = append(demand, key)
			continue
		}
		if stale, _ := s.evaluate(entry, now); stale {
			demand = append(demand, key)
		}
	}
	if len(demand) == 0 {
		return nil
	}

	flights, err := s.coordinator.Demand(ctx, demand)
	if err != nil {
		return err
	}
	return WaitAll(ctx, flights)
}

func (s *Service) StartScheduler(ctx context.Context) error { return s.scheduler.Start(ctx) }
func (s *Service) StopScheduler(ctx context.Context) error  { return s.scheduler.Stop(ctx) }
func (s *Service) RefreshNow(force bool) error              { return s.scheduler.RefreshNow(force) }
func (s *Service) SchedulerStats() SchedulerStats           { return s.scheduler.Stats() }
func (s *Service) PoolStats() fetchworker.PoolStats         { return s.coordinator.PoolStats() }
