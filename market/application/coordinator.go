package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/andriy-git/stocksTUI/pkg/fetchworker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Flight is one in-progress fetch for one cache key. Every caller that
// demanded the key while it was airborne holds the same Flight and
// observes the same outcome.
type Flight struct {
	key   domain.CacheKey
	done  chan struct{}
	once  sync.Once
	entry domain.CacheEntry
	err   error
}

func newFlight(key domain.CacheKey) *Flight {
	return &Flight{key: key, done: make(chan struct{})}
}

func (f *Flight) Key() domain.CacheKey { return f.key }

func (f *Flight) Done() <-chan struct{} { return f.done }

// Outcome is valid once Done is closed.
func (f *Flight) Outcome() (domain.CacheEntry, error) {
	return f.entry, f.err
}

// Wait blocks until the flight lands or the caller gives up.
func (f *Flight) Wait(ctx context.Context) (domain.CacheEntry, error) {
	select {
	case <-f.done:
		return f.entry, f.err
	case <-ctx.Done():
		return domain.CacheEntry{}, ctx.Err()
	}
}

func (f *Flight) resolve(entry domain.CacheEntry, err error) {
	f.once.Do(func() {
		f.entry = entry
		f.err = err
		close(f.done)
	})
}

// CoordinatorOptions carries the knobs the coordinator needs.
type CoordinatorOptions struct {
	BatchSize       int
	FetchTimeout    time.Duration
	Workers         int
	QueueSize       int
	DefaultExchange string
	// ExchangeFor resolves a symbol to its exchange when the provider
	// result does not carry one. Usually a cached meta lookup.
	ExchangeFor func(symbol string) string
}

// Coordinator funnels all provider traffic. Concurrent demand for the
// same key collapses onto one flight; new keys are grouped by kind,
// chunked, and handed to the worker pool. Results write through to the
// store before flights resolve. Failures are recorded per symbol and
// never retried here; the scheduler simply demands again next tick.
type Coordinator struct {
	provider domain.PriceProvider
	store    repository.ICacheRepository
	oracle   domain.CalendarOracle
	opts     CoordinatorOptions
	pool     *fetchworker.Pool

	mu       sync.Mutex
	inflight map[domain.CacheKey]*Flight

	rootCtx context.Context
	cancel  context.CancelFunc
	closed  int32
}

func NewCoordinator(provider domain.PriceProvider, store repository.ICacheRepository, oracle domain.CalendarOracle, opts CoordinatorOptions) *Coordinator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.DefaultExchange == "" {
		opts.DefaultExchange = "NYSE"
	}
	return &Coordinator{
		provider: provider,
		store:    store,
		oracle:   oracle,
		opts:     opts,
		pool:     fetchworker.NewPool(opts.Workers, opts.QueueSize),
		inflight: make(map[domain.CacheKey]*Flight),
	}
}

func (c *Coordinator) Start(ctx context.Context) {
	c.rootCtx, c.cancel = context.WithCancel(ctx)
	c.pool.Start(c.rootCtx)
}

// Demand requests a fetch for every key and returns one flight per key.
// Keys already airborne attach to their existing flight, so the caller
// may receive flights started by somebody else. Callers that do not
// care about outcomes just drop the map.
func (c *Coordinator) Demand(ctx context.Context, keys []domain.CacheKey) (map[domain.CacheKey]*Flight, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, domain.ErrCoordinatorClosed
	}

	flights := make(map[domain.CacheKey]*Flight, len(keys))
	var launched []domain.CacheKey

	c.mu.Lock()
	for _, key := range keys {
		if _, seen := flights[key]; seen {
			continue
		}
		if f, ok := c.inflight[key]; ok {
			flights[key] = f
			continue
		}
		f := newFlight(key)
		c.inflight[key] = f
		flights[key] = f
		launched = append(launched, key)
	}
	c.mu.Unlock()

	if len(launched) == 0 {
		return flights, nil
	}

	byKind := make(map[domain.DataKind][]string)
	for _, key := range launched {
		byKind[key.Kind] = append(byKind[key.Kind], key.Symbol)
	}
	for kind, symbols := range byKind {
		for start := 0; start < len(symbols); start += c.opts.BatchSize {
			end := start + c.opts.BatchSize
			if end > len(symbols) {
				end = len(symbols)
			}
			c.dispatchBatch(kind, symbols[start:end])
		}
	}
	return flights, nil
}

func (c *Coordinator) dispatchBatch(kind domain.DataKind, symbols []string) {
	batchID := uuid.NewString()
	batch := make([]string, len(symbols))
	copy(batch, symbols)

	ok := c.pool.TryDispatch(fetchworker.BatchJob{
		BatchID: batchID,
		Label:   string(kind),
		Handler: func(ctx context.Context) error {
			return c.executeBatch(ctx, batchID, kind, batch)
		},
	})
	if !ok {
		err := fmt.Errorf("fetch queue saturated, batch %s dropped", batchID)
		for _, sym := range batch {
			c.finish(domain.NewCacheKey(sym, kind), domain.CacheEntry{}, err)
		}
	}
}

// executeBatch runs one provider call and settles every key in the
// batch. Results racing shutdown are discarded without store writes.
func (c *Coordinator) executeBatch(ctx context.Context, batchID string, kind domain.DataKind, symbols []string) error {
	if ctx.Err() != nil {
		c.discardBatch(kind, symbols)
		return nil
	}

	logrus.Debugf("[COORD] batch %s: fetching %d %s symbols", batchID, len(symbols), kind)

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	results, err := c.provider.FetchBatch(fetchCtx, symbols, kind)
	cancel()
	fetchedAt := time.Now().UTC()

	if ctx.Err() != nil {
		c.discardBatch(kind, symbols)
		return nil
	}

	if err != nil {
		logrus.WithError(err).Warnf("[COORD] batch %s (%s) failed", batchID, kind)
		for _, sym := range symbols {
			key := domain.NewCacheKey(sym, kind)
			if recErr := c.store.RecordError(ctx, key, err.Error()); recErr != nil {
				logrus.WithError(recErr).Warnf("[COORD] could not record error for %s", key)
			}
			c.finish(key, domain.CacheEntry{}, err)
		}
		return err
	}

	var failed int
	for _, sym := range symbols {
		key := domain.NewCacheKey(sym, kind)
		res, ok := results[key.Symbol]
		if !ok {
			res.Err = &domain.ProviderError{
				Symbol: key.Symbol,
				Code:   domain.ProviderCodeNotFound,
				Err:    fmt.Errorf("missing from batch response"),
			}
		}
		if res.Err != nil {
			failed++
			if recErr := c.store.RecordError(ctx, key, res.Err.Error()); recErr != nil {
				logrus.WithError(recErr).Warnf("[COORD] could not record error for %s", key)
			}
			c.finish(key, domain.CacheEntry{}, res.Err)
			continue
		}

		entry := domain.CacheEntry{
			Key:           key,
			Value:         res.Payload,
			FetchedAt:     fetchedAt,
			SessionMarker: c.markerFor(key.Symbol, res.Exchange, fetchedAt),
		}
		if err := c.store.Upsert(ctx, entry); err != nil {
			// Fail open: the data is good even if the disk is not.
			logrus.WithError(err).Warnf("[COORD] write-through failed for %s", key)
		}
		c.finish(key, entry, nil)
	}

	if failed > 0 {
		logrus.Debugf("[COORD] batch %s: %d/%d symbols failed", batchID, failed, len(symbols))
	}
	return nil
}

func (c *Coordinator) discardBatch(kind domain.DataKind, symbols []string) {
	for _, sym := range symbols {
		c.finish(domain.NewCacheKey(sym, kind), domain.CacheEntry{}, context.Canceled)
	}
}

// finish removes the key from the registry before resolving, so a
// demand arriving right after sees no flight and launches a fresh one.
func (c *Coordinator) finish(key domain.CacheKey, entry domain.CacheEntry, err error) {
	c.mu.Lock()
	f, ok := c.inflight[key]
	if ok {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	if ok {
		f.resolve(entry, err)
	}
}

// markerFor derives the session marker persisted with an entry. The
// exchange comes from the provider result when present, then the meta
// lookup, then the configured default.
func (c *Coordinator) markerFor(symbol, exchange string, fetchedAt time.Time) string {
	if exchange == "" && c.opts.ExchangeFor != nil {
		exchange = c.opts.ExchangeFor(symbol)
	}
	if exchange == "" {
		exchange = c.opts.DefaultExchange
	}
	st, err := c.oracle.SessionState(exchange, fetchedAt)
	if err != nil {
		logrus.WithError(err).Debugf("[COORD] no session state for %s (%s)", symbol, exchange)
		return ""
	}
	return st.Marker()
}

// Close cancels in-flight provider calls, drains the pool, and fails
// any flights that never reached a worker. Bounded by ctx.
func (c *Coordinator) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}

	drained := make(chan struct{})
	go func() {
		c.pool.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	leftovers := make([]*Flight, 0, len(c.inflight))
	for _, f := range c.inflight {
		leftovers = append(leftovers, f)
	}
	c.inflight = make(map[domain.CacheKey]*Flight)
	c.mu.Unlock()

	for _, f := range leftovers {
		f.resolve(domain.CacheEntry{}, context.Canceled)
	}
	return nil
}

func (c *Coordinator) PoolStats() fetchworker.PoolStats {
	return c.pool.GetStats()
}

// InflightCount is a monitoring hook.
func (c *Coordinator) InflightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// WaitAll blocks until every flight lands or ctx expires, returning the
// first error seen. Used by one-shot callers that need fresh data now.
func WaitAll(ctx context.Context, flights map[domain.CacheKey]*Flight) error {
	var firstErr error
	for _, f := range flights {
		if _, err := f.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
