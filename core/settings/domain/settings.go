package domain

import "context"

// Setting represents a dynamic configuration value stored in the database.
type Setting struct {
	Key   string
	Value string
}

// ISettingsRepository defines the contract for persisting dynamic settings.
type ISettingsRepository interface {
	// Basic CRUD
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error

	// InitSchema creates the necessary tables
	InitSchema(ctx context.Context) error
}

// Common Keys defined in the system. These override the env-derived
// config at boot and can be changed at runtime through the REST layer.
const (
	KeyDefaultExchange       = "market_default_exchange"
	KeyRefreshMinInterval    = "refresh_min_interval_secs"
	KeyRefreshBaseInterval   = "refresh_base_interval_secs"
	KeyRefreshMaxInterval    = "refresh_max_interval_secs"
	KeyRefreshBoundaryWindow = "refresh_boundary_window_secs"
	KeyCacheRetentionDays    = "cache_retention_days"
	KeyCacheMaxEntryAgeHours = "cache_max_entry_age_hours"
)
