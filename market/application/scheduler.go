package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/sirupsen/logrus"
)

// Scheduler lifecycle states.
const (
	StateIdle int32 = iota
	StateTicking
	StateCancelling
	StateStopped
)

func stateName(s int32) string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTicking:
		return "ticking"
	case StateCancelling:
		return "cancelling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// CadenceConfig bounds the refresh loop. The interval collapses to
// MinInterval inside BoundaryWindow of a session open or close, runs at
// BaseInterval while any tracked exchange is trading, and stretches to
// MaxInterval when everything is dark.
type CadenceConfig struct {
	MinInterval    time.Duration
	BaseInterval   time.Duration
	MaxInterval    time.Duration
	BoundaryWindow time.Duration
}

func DefaultCadence() CadenceConfig {
	return CadenceConfig{
		MinInterval:    5 * time.Second,
		BaseInterval:   30 * time.Second,
		MaxInterval:    30 * time.Minute,
		BoundaryWindow: 2 * time.Minute,
	}
}

// SchedulerStats is the monitoring snapshot.
type SchedulerStats struct {
	State        string    `json:"state"`
	TotalTicks   int64     `json:"total_ticks"`
	LastTickAt   time.Time `json:"last_tick_at"`
	LastDemanded int       `json:"last_demanded"`
	LastInterval string    `json:"last_interval"`
	TrackedCount int       `json:"tracked_count"`
}

// Scheduler drives periodic refreshes. Each tick it snapshots the
// tracked symbols, asks the policy which entries went stale, and
// demands only those. A force refresh demands everything. It never
// waits on flights: outcomes land in the store and the next tick sees
// them.
type Scheduler struct {
	coordinator *Coordinator
	store       repository.ICacheRepository
	oracle      domain.CalendarOracle
	policy      ExpiryPolicy
	cadence     CadenceConfig

	// tracked returns the symbols under watch; exchangeFor maps a
	// symbol to its venue for calendar questions.
	tracked     func(ctx context.Context) []string
	exchangeFor func(symbol string) string
	defaultExch string

	mu     sync.Mutex
	state  int32
	kick   chan struct{}
	forced int32
	stopCh chan struct{}
	doneCh chan struct{}

	totalTicks   int64
	lastTickUnix int64
	lastDemanded int32
	lastInterval int64
	trackedCount int32
}

func NewScheduler(coordinator *Coordinator, store repository.ICacheRepository, oracle domain.CalendarOracle, policy ExpiryPolicy, cadence CadenceConfig, tracked func(ctx context.Context) []string, exchangeFor func(symbol string) string, defaultExchange string) *Scheduler {
	if cadence.MinInterval <= 0 || cadence.BaseInterval <= 0 || cadence.MaxInterval <= 0 {
		cadence = DefaultCadence()
	}
	return &Scheduler{
		coordinator: coordinator,
		store:       store,
		oracle:      oracle,
		policy:      policy,
		cadence:     cadence,
		tracked:     tracked,
		exchangeFor: exchangeFor,
		defaultExch: defaultExchange,
		kick:        make(chan struct{}, 1),
	}
}

func (s *Scheduler) State() string {
	return stateName(atomic.LoadInt32(&s.state))
}

// Start moves Idle (or Stopped) to Ticking and launches the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := atomic.LoadInt32(&s.state)
	if st == StateTicking || st == StateCancelling {
		return domain.ErrSchedulerRunning
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	atomic.StoreInt32(&s.state, StateTicking)
	go s.run(ctx, s.stopCh, s.doneCh)
	logrus.Info("[SCHED] Refresh scheduler started")
	return nil
}

// Stop moves Ticking to Cancelling, waits for the loop to finish its
// current tick and for in-flight demands to settle, then lands on
// Stopped. Bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !atomic.CompareAndSwapInt32(&s.state, StateTicking, StateCancelling) {
		s.mu.Unlock()
		return domain.ErrSchedulerNotActive
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	logrus.Info("[SCHED] Refresh scheduler stopped")
	return nil
}

// RefreshNow nudges the loop out of its wait. With force, the next tick
// demands every tracked key whether stale or not.
func (s *Scheduler) RefreshNow(force bool) error {
	if atomic.LoadInt32(&s.state) != StateTicking {
		return domain.ErrSchedulerNotActive
	}
	if force {
		atomic.StoreInt32(&s.forced, 1)
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		State:        s.State(),
		TotalTicks:   atomic.LoadInt64(&s.totalTicks),
		LastTickAt:   time.Unix(atomic.LoadInt64(&s.lastTickUnix), 0).UTC(),
		LastDemanded: int(atomic.LoadInt32(&s.lastDemanded)),
		LastInterval: time.Duration(atomic.LoadInt64(&s.lastInterval)).String(),
		TrackedCount: int(atomic.LoadInt32(&s.trackedCount)),
	}
}

func (s *Scheduler) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		atomic.StoreInt32(&s.state, StateStopped)
		close(doneCh)
	}()

	// First tick right away so a fresh start populates the cache.
	s.tick(ctx, false)

	safetyTicker := time.NewTicker(5 * time.Minute)
	defer safetyTicker.Stop()

	for {
		sleepDuration := s.nextInterval(ctx, time.Now().UTC())
		atomic.StoreInt64(&s.lastInterval, int64(sleepDuration))

		adaptiveTimer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			adaptiveTimer.Stop()
			return
		case <-stopCh:
			adaptiveTimer.Stop()
			return
		case <-s.kick:
			adaptiveTimer.Stop()
			force := atomic.CompareAndSwapInt32(&s.forced, 1, 0)
			s.tick(ctx, force)
		case <-safetyTicker.C:
			adaptiveTimer.Stop()
			s.tick(ctx, false)
		case <-adaptiveTimer.C:
			s.tick(ctx, false)
		}
	}
}

// tick evaluates staleness across the tracked set and demands what
// needs refreshing. Demand outcomes are not awaited.
func (s *Scheduler) tick(ctx context.Context, force bool) {
	now := time.Now().UTC()
	atomic.AddInt64(&s.totalTicks, 1)
	atomic.StoreInt64(&s.lastTickUnix, now.Unix())

	symbols := s.tracked(ctx)
	atomic.StoreInt32(&s.trackedCount, int32(len(symbols)))
	if len(symbols) == 0 {
		atomic.StoreInt32(&s.lastDemanded, 0)
		return
	}

	keys := make([]domain.CacheKey, 0, len(symbols)*2)
	for _, sym := range symbols {
		keys = append(keys,
			domain.NewCacheKey(sym, domain.KindQuote),
			domain.NewCacheKey(sym, domain.KindMeta))
	}

	var demand []domain.CacheKey
	if force {
		demand = keys
	} else {
		entries, err := s.store.GetMany(ctx, keys)
		if err != nil {
			logrus.WithError(err).Warn("[SCHED] staleness sweep could not read store")
			return
		}
		for _, key := range keys {
			entry, ok := entries[key]
			if !ok || s.isStale(entry, now) {
				demand = append(demand, key)
			}
		}
	}

	atomic.StoreInt32(&s.lastDemanded, int32(len(demand)))
	if len(demand) == 0 {
		return
	}

	logrus.Debugf("[SCHED] tick: demanding %d of %d keys (force=%v)", len(demand), len(keys), force)
	if _, err := s.coordinator.Demand(ctx, demand); err != nil {
		logrus.WithError(err).Warn("[SCHED] demand rejected")
	}
}

// isStale resolves both calendar states and applies the policy. Oracle
// trouble counts as stale so the symbol keeps refreshing.
func (s *Scheduler) isStale(entry domain.CacheEntry, now time.Time) bool {
	if !entry.HasValue() {
		return true
	}
	exchange := s.exchangeOf(entry.Key.Symbol)
	atFetch, err := s.oracle.SessionState(exchange, entry.FetchedAt)
	if err != nil {
		return true
	}
	atNow, err := s.oracle.SessionState(exchange, now)
	if err != nil {
		return true
	}
	return s.policy.IsStale(entry, now, atFetch, atNow)
}

func (s *Scheduler) exchangeOf(symbol string) string {
	if s.exchangeFor != nil {
		if ex := s.exchangeFor(symbol); ex != "" {
			return ex
		}
	}
	return s.defaultExch
}

// nextInterval implements the cadence: wake early near session
// boundaries, keep pace during sessions, doze off-hours. The sleep is
// also capped at the nearest boundary so a transition never slips past
// a long wait.
func (s *Scheduler) nextInterval(ctx context.Context, now time.Time) time.Duration {
	interval := s.cadence.MaxInterval

	exchanges := make(map[string]bool)
	for _, sym := range s.tracked(ctx) {
		exchanges[s.exchangeOf(sym)] = true
	}

	var nearestBoundary time.Duration
	for ex := range exchanges {
		st, err := s.oracle.SessionState(ex, now)
		if err != nil {
			continue
		}
		if st.Phase.Active() && s.cadence.BaseInterval < interval {
			interval = s.cadence.BaseInterval
		}
		for _, boundary := range []time.Time{st.NextOpen, st.NextClose} {
			if boundary.IsZero() {
				continue
			}
			d := boundary.Sub(now)
			if d <= 0 {
				continue
			}
			if nearestBoundary == 0 || d < nearestBoundary {
				nearestBoundary = d
			}
		}
	}

	if nearestBoundary > 0 {
		if nearestBoundary <= s.cadence.BoundaryWindow {
			interval = s.cadence.MinInterval
		} else if cap := nearestBoundary - s.cadence.BoundaryWindow; cap < interval {
			// Wake just as the boundary window opens.
			interval = cap
		}
	}

	if interval < s.cadence.MinInterval {
		interval = s.cadence.MinInterval
	}
	if interval > s.cadence.MaxInterval {
		interval = s.cadence.MaxInterval
	}
	return interval
}
