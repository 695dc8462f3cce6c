package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SQLiteCache persists cache entries in a single WAL-journaled sqlite
// file. One row per (symbol, data_kind); the upsert guard keeps the
// later fetched_at regardless of write arrival order.
type SQLiteCache struct {
	db   *sql.DB
	path string
}

func NewSQLiteCache(path string) (*SQLiteCache, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open market cache db: %w", err)
	}
	// Single writer keeps WAL happy and serializes same-key upserts.
	db.SetMaxOpenConns(1)
	return &SQLiteCache{db: db, path: path}, nil
}

func (r *SQLiteCache) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS market_cache (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			data_kind TEXT NOT NULL,
			value TEXT,
			fetched_at DATETIME,
			session_marker TEXT,
			last_error TEXT,
			updated_at DATETIME NOT NULL,
			UNIQUE(symbol, data_kind)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_market_cache_kind ON market_cache(data_kind);`,
		`CREATE INDEX IF NOT EXISTS idx_market_cache_fetched ON market_cache(fetched_at);`,
	}
	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("init market cache schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteCache) Get(ctx context.Context, key domain.CacheKey) (domain.CacheEntry, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT symbol, data_kind, value, fetched_at, session_marker, last_error
		 FROM market_cache WHERE symbol = ? AND data_kind = ?`,
		key.Symbol, string(key.Kind))

	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		// Unreadable row: treat as a miss so a refetch can repair it.
		logrus.WithError(err).Warnf("[CACHE] dropping unreadable row for %s", key)
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// getManyChunkSize keeps each GetMany query well under sqlite's
// variable and expression-depth limits on large tracked sets.
const getManyChunkSize = 200

func (r *SQLiteCache) GetMany(ctx context.Context, keys []domain.CacheKey) (map[domain.CacheKey]domain.CacheEntry, error) {
	out := make(map[domain.CacheKey]domain.CacheEntry, len(keys))
	for len(keys) > 0 {
		chunk := keys
		if len(chunk) > getManyChunkSize {
			chunk = chunk[:getManyChunkSize]
		}
		keys = keys[len(chunk):]
		if err := r.getChunk(ctx, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteCache) getChunk(ctx context.Context, keys []domain.CacheKey, out map[domain.CacheKey]domain.CacheEntry) error {
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		conds = append(conds, "(symbol = ? AND data_kind = ?)")
		args = append(args, key.Symbol, string(key.Kind))
	}
	query := `SELECT symbol, data_kind, value, fetched_at, session_marker, last_error
		 FROM market_cache WHERE ` + strings.Join(conds, " OR ")

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingSchema(err) {
			return nil
		}
		return fmt.Errorf("query market cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			logrus.WithError(err).Warn("[CACHE] dropping unreadable row")
			continue
		}
		out[entry.Key] = entry
	}
	return rows.Err()
}

func (r *SQLiteCache) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	return r.withSchemaRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO market_cache (id, symbol, data_kind, value, fetched_at, session_marker, last_error, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
			 ON CONFLICT(symbol, data_kind) DO UPDATE SET
				value = excluded.value,
				fetched_at = excluded.fetched_at,
				session_marker = excluded.session_marker,
				last_error = NULL,
				updated_at = excluded.updated_at
			 WHERE market_cache.fetched_at IS NULL OR excluded.fetched_at >= market_cache.fetched_at`,
			uuid.NewString(), entry.Key.Symbol, string(entry.Key.Kind),
			string(entry.Value), entry.FetchedAt.UTC(), entry.SessionMarker,
			time.Now().UTC())
		return err
	})
}

func (r *SQLiteCache) RecordError(ctx context.Context, key domain.CacheKey, msg string) error {
	return r.withSchemaRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO market_cache (id, symbol, data_kind, value, fetched_at, session_marker, last_error, updated_at)
			 VALUES (?, ?, ?, NULL, NULL, NULL, ?, ?)
			 ON CONFLICT(symbol, data_kind) DO UPDATE SET
				last_error = excluded.last_error,
				updated_at = excluded.updated_at`,
			uuid.NewString(), key.Symbol, string(key.Kind), msg, time.Now().UTC())
		return err
	})
}

func (r *SQLiteCache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM market_cache
		 WHERE (fetched_at IS NOT NULL AND fetched_at < ?)
		    OR (fetched_at IS NULL AND updated_at < ?)`,
		cutoff, cutoff)
	if err != nil {
		if isMissingSchema(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("prune market cache: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteCache) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM market_cache`)
	if err != nil && !isMissingSchema(err) {
		return fmt.Errorf("reset market cache: %w", err)
	}
	return nil
}

func (r *SQLiteCache) Stats(ctx context.Context) (StoreStats, error) {
	stats := StoreStats{EntriesByKind: make(map[string]int64)}

	rows, err := r.db.QueryContext(ctx,
		`SELECT data_kind, COUNT(*) FROM market_cache GROUP BY data_kind`)
	if err != nil {
		if isMissingSchema(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return stats, err
		}
		stats.EntriesByKind[kind] = count
		stats.TotalEntries += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(fetched_at), MAX(fetched_at)
		 FROM market_cache WHERE last_error IS NOT NULL OR fetched_at IS NOT NULL`)
	var oldest, newest sql.NullTime
	var total int64
	if err := row.Scan(&total, &oldest, &newest); err == nil {
		if oldest.Valid {
			t := oldest.Time.UTC()
			stats.OldestFetch = &t
		}
		if newest.Valid {
			t := newest.Time.UTC()
			stats.NewestFetch = &t
		}
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM market_cache WHERE last_error IS NOT NULL`).
		Scan(&stats.ErrorEntries); err != nil {
		return stats, err
	}

	if info, err := os.Stat(r.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.FileSizeBytes))
	return stats, nil
}

func (r *SQLiteCache) Close() error {
	return r.db.Close()
}

// withSchemaRetry re-creates the schema and retries once when the
// backing file vanished under us (operator deleted it at runtime).
func (r *SQLiteCache) withSchemaRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isMissingSchema(err) {
		return err
	}
	if initErr := r.Init(ctx); initErr != nil {
		return initErr
	}
	return fn()
}

func isMissingSchema(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

type scanFunc func(dest ...any) error

func scanEntry(scan scanFunc) (domain.CacheEntry, error) {
	var (
		symbol, kind string
		value        sql.NullString
		fetchedAt    sql.NullTime
		marker       sql.NullString
		lastError    sql.NullString
	)
	if err := scan(&symbol, &kind, &value, &fetchedAt, &marker, &lastError); err != nil {
		return domain.CacheEntry{}, err
	}

	entry := domain.CacheEntry{
		Key: domain.CacheKey{Symbol: symbol, Kind: domain.DataKind(kind)},
	}
	if value.Valid && value.String != "" {
		entry.Value = []byte(value.String)
	}
	if fetchedAt.Valid {
		entry.FetchedAt = fetchedAt.Time.UTC()
	}
	if marker.Valid {
		entry.SessionMarker = marker.String
	}
	if lastError.Valid {
		entry.LastError = lastError.String
	}
	return entry, nil
}
