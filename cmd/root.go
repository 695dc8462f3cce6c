package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	coreconfig "github.com/andriy-git/stocksTUI/core/config"
	coreDB "github.com/andriy-git/stocksTUI/core/database"
	settingsApp "github.com/andriy-git/stocksTUI/core/settings/application"
	domainCache "github.com/andriy-git/stocksTUI/domains/cache"
	domainHealth "github.com/andriy-git/stocksTUI/domains/health"
	domainWatchlist "github.com/andriy-git/stocksTUI/domains/watchlist"
	"github.com/andriy-git/stocksTUI/market/application"
	"github.com/andriy-git/stocksTUI/market/calendar"
	"github.com/andriy-git/stocksTUI/market/provider"
	"github.com/andriy-git/stocksTUI/market/repository"
	"github.com/andriy-git/stocksTUI/pkg/utils"
	"github.com/andriy-git/stocksTUI/usecase"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Market pipeline
	marketService *application.Service
	cacheStore    repository.ICacheRepository
	oracle        *calendar.Oracle

	// Usecases
	watchlistUsecase domainWatchlist.IWatchlistUsecase
	cacheUsecase     domainCache.ICacheUsecase
	healthUsecase    domainHealth.IHealthUsecase
	settingsSvc      *settingsApp.SettingsService

	// appCancel tears down background loops on shutdown.
	appCancel context.CancelFunc
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockstui",
	Short: "Market-aware quote cache and refresh pipeline",
	Long: `stockstui keeps a durable local snapshot of market quotes fresh enough
to display while minimizing calls to the upstream provider. Staleness is
decided from exchange trading sessions, not wall-clock TTLs.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	// Then initialize other components
	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig merges flag and env values on top of the loaded config.
func initEnvConfig() {
	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalln("Invalid configuration:", err)
	}

	if envPort := viper.GetString("app_port"); envPort != "" {
		cfg.App.Port = envPort
	}
	if viper.IsSet("app_debug") && viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if envBasicAuth := viper.GetString("app_basic_auth"); envBasicAuth != "" {
		cfg.App.BasicAuth = strings.Split(envBasicAuth, ",")
	}
	if envCacheDB := viper.GetString("cache_db_path"); envCacheDB != "" {
		cfg.Cache.DBPath = envCacheDB
	}
	if envExchange := viper.GetString("refresh_default_exchange"); envExchange != "" {
		cfg.Refresh.DefaultExchange = envExchange
	}
}

func initFlags() {
	// Flags bind into viper so they win over plain env vars.
	rootCmd.PersistentFlags().StringP("port", "p", "3000",
		"change port number with --port <number> | example: --port=8080")
	rootCmd.PersistentFlags().BoolP("debug", "d", false,
		"hide or displaying log with --debug <true/false> | example: --debug=true")
	rootCmd.PersistentFlags().StringSliceP("basic-auth", "b", nil,
		"basic auth credential | -b=yourUsername:yourPassword")
	rootCmd.PersistentFlags().String("cache-db", "",
		`market cache sqlite path --cache-db <string> | example: --cache-db="storages/market_cache.db"`)
	rootCmd.PersistentFlags().String("default-exchange", "",
		`calendar exchange for symbols without cached metadata --default-exchange <string> | example: --default-exchange="NASDAQ"`)

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("app_basic_auth", rootCmd.PersistentFlags().Lookup("basic-auth"))
	_ = viper.BindPFlag("cache_db_path", rootCmd.PersistentFlags().Lookup("cache-db"))
	_ = viper.BindPFlag("refresh_default_exchange", rootCmd.PersistentFlags().Lookup("default-exchange"))
}

func initApp() {
	cfg := coreconfig.Global

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// preparing folder if not exist
	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}

	// Stable instance identity for logs and health records.
	cfg.App.ServerID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	logrus.Infof("[APP] server id: %s", cfg.App.ServerID)

	var ctx context.Context
	ctx, appCancel = context.WithCancel(context.Background())

	// Application database (watchlists, settings, health)
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open application db: %v", err)
	}

	// Dynamic settings override the env-derived config at boot.
	settingsSvc = settingsApp.NewSettingsService(db)
	if err := settingsSvc.ApplyTo(ctx, cfg); err != nil {
		logrus.WithError(err).Warn("[CONFIG] stored settings ignored (invalid combination)")
	}

	// Market cache store
	store, err := repository.NewSQLiteCache(cfg.Cache.DBPath)
	if err != nil {
		logrus.Fatalf("failed to open market cache: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		logrus.Fatalf("failed to init market cache schema: %v", err)
	}
	cacheStore = store

	// Calendar oracle
	oracle = calendar.NewOracle()
	if cfg.Calendar.File != "" {
		if err := oracle.LoadFile(cfg.Calendar.File); err != nil {
			logrus.WithError(err).Warn("[CALENDAR] override file ignored")
		}
	}

	// Watchlists feed the scheduler its symbol universe.
	watchlistUsecase, err = usecase.NewWatchlistService(db)
	if err != nil {
		logrus.Fatalf("failed to init watchlist store: %v", err)
	}

	// Market pipeline
	yahoo := provider.NewYahooProvider(cfg.Provider.BaseURL, cfg.Provider.Timeout)
	marketService = application.NewService(cacheStore, yahoo, oracle, application.ServiceOptions{
		DefaultExchange: cfg.Refresh.DefaultExchange,
		MaxEntryAge:     cfg.Cache.MaxEntryAge,
		Cadence: application.CadenceConfig{
			MinInterval:    cfg.Refresh.MinInterval,
			BaseInterval:   cfg.Refresh.BaseInterval,
			MaxInterval:    cfg.Refresh.MaxInterval,
			BoundaryWindow: cfg.Refresh.BoundaryWindow,
		},
		BatchSize:    cfg.Provider.BatchSize,
		FetchTimeout: cfg.Provider.Timeout,
		Workers:      cfg.WorkerPool.Size,
		QueueSize:    cfg.WorkerPool.QueueSize,
		Tracked:      watchlistUsecase.TrackedSymbols,
	})
	marketService.Start(ctx)

	// Operator tooling
	cacheUsecase = usecase.NewCacheService(cacheStore, cfg.Cache.Retention, cfg.Cache.PruneInterval)
	healthUsecase = usecase.NewHealthService(filepath.Join(cfg.Paths.Storages, "health.db"),
		yahoo, cacheStore, oracle, cfg.Refresh.DefaultExchange)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the pipeline and storage.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if appCancel != nil {
		appCancel()
	}

	if marketService != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := marketService.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("[APP] pipeline shutdown incomplete")
		}
	}

	if cacheStore != nil {
		if err := cacheStore.Close(); err != nil {
			logrus.WithError(err).Warn("[APP] could not close market cache")
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
