package usecase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domainHealth "github.com/andriy-git/stocksTUI/domains/health"
	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// healthCheckKey is the reserved cache key the store probe writes to.
// The leading underscore keeps it out of any real ticker namespace.
var healthCheckKey = domain.CacheKey{Symbol: "_HEALTHCHECK", Kind: domain.KindMeta}

// canarySymbol is a liquid ticker any provider should answer for.
const canarySymbol = "AAPL"

type healthService struct {
	db       *sql.DB
	provider domain.PriceProvider
	store    repository.ICacheRepository
	oracle   domain.CalendarOracle
	exchange string
}

func initHealthStorageDB(dbPath string) (*sql.DB, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, err
	}

	createHealthTable := `
		CREATE TABLE IF NOT EXISTS health_checks (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			status TEXT NOT NULL,
			last_message TEXT,
			last_checked TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_success TIMESTAMP,
			UNIQUE(entity_type, entity_id)
		);
	`

	if _, err := db.Exec(createHealthTable); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func NewHealthService(dbPath string, provider domain.PriceProvider, store repository.ICacheRepository, oracle domain.CalendarOracle, defaultExchange string) domainHealth.IHealthUsecase {
	db, err := initHealthStorageDB(dbPath)
	if err != nil {
		// Checks still run without storage; ensureDB skips the
		// persistence of results.
		logrus.WithError(err).Error("[HEALTH] failed to initialize storage")
		db = nil
	}
	return &healthService{
		db:       db,
		provider: provider,
		store:    store,
		oracle:   oracle,
		exchange: defaultExchange,
	}
}

func (s *healthService) ensureDB() error {
	if s.db == nil {
		return fmt.Errorf("health storage not initialized")
	}
	return nil
}

func (s *healthService) GetStatus(ctx context.Context) ([]domainHealth.HealthRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}

	query := `SELECT id, entity_type, entity_id, status, last_message, last_checked, last_success FROM health_checks`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domainHealth.HealthRecord
	for rows.Next() {
		var r domainHealth.HealthRecord
		var lastSuccess sql.NullTime
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Status, &r.LastMessage, &r.LastChecked, &lastSuccess); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			r.LastSuccess = &lastSuccess.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *healthService) getEntityStatus(ctx context.Context, entityType domainHealth.EntityType, entityID string) (domainHealth.HealthRecord, error) {
	if err := s.ensureDB(); err != nil {
		return domainHealth.HealthRecord{}, err
	}

	var r domainHealth.HealthRecord
	var lastSuccess sql.NullTime
	query := `SELECT id, entity_type, entity_id, status, last_message, last_checked, last_success FROM health_checks WHERE entity_type = ? AND entity_id = ?`
	err := s.db.QueryRowContext(ctx, query, string(entityType), entityID).Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Status, &r.LastMessage, &r.LastChecked, &lastSuccess)
	if err != nil {
		if err == sql.ErrNoRows {
			return domainHealth.HealthRecord{
				EntityType: entityType,
				EntityID:   entityID,
				Status:     domainHealth.StatusUnknown,
			}, nil
		}
		return r, err
	}
	if lastSuccess.Valid {
		r.LastSuccess = &lastSuccess.Time
	}
	return r, nil
}

func (s *healthService) upsertStatus(ctx context.Context, r domainHealth.HealthRecord) error {
	if err := s.ensureDB(); err != nil {
		return err
	}

	if r.ID == "" {
		existing, _ := s.getEntityStatus(ctx, r.EntityType, r.EntityID)
		if existing.ID != "" {
			r.ID = existing.ID
		} else {
			r.ID = uuid.NewString()
		}
	}

	query := `
		INSERT INTO health_checks (id, entity_type, entity_id, status, last_message, last_checked, last_success)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			status = excluded.status,
			last_message = excluded.last_message,
			last_checked = excluded.last_checked,
			last_success = CASE WHEN excluded.status = 'OK' THEN excluded.last_checked ELSE last_success END
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, r.ID, string(r.EntityType), r.EntityID, string(r.Status), r.LastMessage, now, now)
	return err
}

// CheckProvider sends a one-symbol canary batch upstream.
func (s *healthService) CheckProvider(ctx context.Context) (domainHealth.HealthRecord, error) {
	record := domainHealth.HealthRecord{
		EntityType: domainHealth.EntityProvider,
		EntityID:   "upstream",
		Status:     domainHealth.StatusOk,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	results, err := s.provider.FetchBatch(checkCtx, []string{canarySymbol}, domain.KindFastQuote)
	switch {
	case err != nil:
		record.Status = domainHealth.StatusError
		record.LastMessage = err.Error()
	case results[canarySymbol].Err != nil:
		record.Status = domainHealth.StatusError
		record.LastMessage = results[canarySymbol].Err.Error()
	default:
		record.LastMessage = "Canary fetch succeeded"
	}

	err = s.upsertStatus(ctx, record)
	return record, err
}

// CheckStore round-trips a reserved key through upsert and get.
func (s *healthService) CheckStore(ctx context.Context) (domainHealth.HealthRecord, error) {
	record := domainHealth.HealthRecord{
		EntityType: domainHealth.EntityStore,
		EntityID:   "market_cache",
		Status:     domainHealth.StatusOk,
	}

	probe := domain.CacheEntry{
		Key:       healthCheckKey,
		Value:     []byte(`{"probe":true}`),
		FetchedAt: time.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, probe); err != nil {
		record.Status = domainHealth.StatusError
		record.LastMessage = fmt.Sprintf("write probe failed: %v", err)
	} else if _, found, err := s.store.Get(ctx, healthCheckKey); err != nil || !found {
		record.Status = domainHealth.StatusError
		record.LastMessage = fmt.Sprintf("read probe failed (found=%v): %v", found, err)
	} else {
		record.LastMessage = "Store roundtrip succeeded"
	}

	err := s.upsertStatus(ctx, record)
	return record, err
}

// CheckCalendar asks the oracle about the default exchange right now.
func (s *healthService) CheckCalendar(ctx context.Context) (domainHealth.HealthRecord, error) {
	record := domainHealth.HealthRecord{
		EntityType: domainHealth.EntityCalendar,
		EntityID:   s.exchange,
		Status:     domainHealth.StatusOk,
	}

	st, err := s.oracle.SessionState(s.exchange, time.Now().UTC())
	if err != nil {
		record.Status = domainHealth.StatusError
		record.LastMessage = err.Error()
	} else {
		record.LastMessage = fmt.Sprintf("Session phase: %s", st.Phase)
	}

	err = s.upsertStatus(ctx, record)
	return record, err
}

func (s *healthService) CheckAll(ctx context.Context) ([]domainHealth.HealthRecord, error) {
	var results []domainHealth.HealthRecord

	if r, err := s.CheckStore(ctx); err == nil {
		results = append(results, r)
	}
	if r, err := s.CheckCalendar(ctx); err == nil {
		results = append(results, r)
	}
	if r, err := s.CheckProvider(ctx); err == nil {
		results = append(results, r)
	}

	return results, nil
}

func (s *healthService) StartPeriodicChecks(ctx context.Context) {
	logrus.Info("[HEALTH] starting periodic health checks loop (interval: 30m)")
	ticker := time.NewTicker(30 * time.Minute)

	// Run once at start
	go func() {
		logrus.Info("[HEALTH] performing initial health check")
		s.CheckAll(ctx)
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logrus.Info("[HEALTH] performing scheduled health check")
				s.CheckAll(ctx)
			}
		}
	}()
}
