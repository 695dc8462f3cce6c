package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	MCP        MCPConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Refresh    RefreshConfig
	Provider   ProviderConfig
	WorkerPool WorkerPoolConfig
	Calendar   CalendarConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	BaseUrl            string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type MCPConfig struct {
	Port string
	Host string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

// DatabaseConfig drives the GORM store that holds watchlists. Name is
// the file path for SQLite and the database name for Postgres.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// CacheConfig covers the market cache sqlite file and its retention.
type CacheConfig struct {
	DBPath        string
	MaxEntryAge   time.Duration
	Retention     time.Duration
	PruneInterval time.Duration
}

// RefreshConfig tunes the scheduler cadence. Intervals must satisfy
// Min <= Base <= Max; BoundaryWindow is how close to a session open or
// close the fast cadence kicks in.
type RefreshConfig struct {
	Enabled         bool
	MinInterval     time.Duration
	BaseInterval    time.Duration
	MaxInterval     time.Duration
	BoundaryWindow  time.Duration
	DefaultExchange string
}

type ProviderConfig struct {
	BaseURL   string
	Timeout   time.Duration
	BatchSize int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type CalendarConfig struct {
	File string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	debug := false
	if v := os.Getenv("APP_DEBUG"); v == "true" || v == "1" || v == "on" {
		debug = true
	} else if v := os.Getenv("DEBUG"); v == "true" || v == "1" {
		debug = true
	}

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.2.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Name:     getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "app.db")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
	}

	cacheCfg := CacheConfig{
		DBPath:        getEnv("CACHE_DB_PATH", filepath.Join(pathsCfg.Storages, "market_cache.db")),
		MaxEntryAge:   getEnvDuration("CACHE_MAX_ENTRY_AGE", 48*time.Hour),
		Retention:     getEnvDuration("CACHE_RETENTION", 7*24*time.Hour),
		PruneInterval: getEnvDuration("CACHE_PRUNE_INTERVAL", 6*time.Hour),
	}

	refreshCfg := RefreshConfig{
		Enabled:         getEnvBool("REFRESH_ENABLED", true),
		MinInterval:     getEnvDuration("REFRESH_MIN_INTERVAL", 5*time.Second),
		BaseInterval:    getEnvDuration("REFRESH_BASE_INTERVAL", 30*time.Second),
		MaxInterval:     getEnvDuration("REFRESH_MAX_INTERVAL", 30*time.Minute),
		BoundaryWindow:  getEnvDuration("REFRESH_BOUNDARY_WINDOW", 2*time.Minute),
		DefaultExchange: getEnv("REFRESH_DEFAULT_EXCHANGE", "NYSE"),
	}

	providerCfg := ProviderConfig{
		BaseURL:   getEnv("PROVIDER_BASE_URL", ""),
		Timeout:   getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		BatchSize: getEnvInt("PROVIDER_BATCH_SIZE", 20),
	}

	cfg := &Config{
		App:        appCfg,
		MCP:        MCPConfig{Port: getEnv("MCP_PORT", "8080"), Host: getEnv("MCP_HOST", "localhost")},
		Paths:      pathsCfg,
		Database:   dbCfg,
		Cache:      cacheCfg,
		Refresh:    refreshCfg,
		Provider:   providerCfg,
		WorkerPool: WorkerPoolConfig{Size: getEnvInt("FETCH_WORKER_POOL_SIZE", 4), QueueSize: getEnvInt("FETCH_WORKER_QUEUE_SIZE", 32)},
		Calendar:   CalendarConfig{File: getEnv("CALENDAR_FILE", "")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	Global = cfg
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Port, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	err = validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
	)
	if err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	err = validation.ValidateStruct(&c.Provider,
		validation.Field(&c.Provider.BatchSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Provider.Timeout, validation.Required, validation.Min(time.Second)),
	)
	if err != nil {
		return fmt.Errorf("provider config: %w", err)
	}

	err = validation.ValidateStruct(&c.Refresh,
		validation.Field(&c.Refresh.MinInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Refresh.BaseInterval, validation.Required),
		validation.Field(&c.Refresh.MaxInterval, validation.Required),
		validation.Field(&c.Refresh.DefaultExchange, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("refresh config: %w", err)
	}
	if c.Refresh.BaseInterval < c.Refresh.MinInterval || c.Refresh.MaxInterval < c.Refresh.BaseInterval {
		return fmt.Errorf("refresh config: intervals must satisfy min <= base <= max")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "on", "yes":
			return true
		case "false", "0", "off", "no":
			return false
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s", "5m") and bare
// integers, which are read as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
