package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/andriy-git/stocksTUI/core/config"
	"github.com/andriy-git/stocksTUI/core/settings/domain"
	"github.com/andriy-git/stocksTUI/core/settings/infrastructure"
	"gorm.io/gorm"
)

type SettingsService struct {
	repo domain.ISettingsRepository
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{
		repo: infrastructure.NewGlobalSettingsGormRepository(db),
	}
}

// DynamicSettings are the stored overrides; nil means "not set, keep
// the env-derived value".
type DynamicSettings struct {
	DefaultExchange       string `json:"default_exchange,omitempty"`
	RefreshMinIntervalS   *int   `json:"refresh_min_interval_secs,omitempty"`
	RefreshBaseIntervalS  *int   `json:"refresh_base_interval_secs,omitempty"`
	RefreshMaxIntervalS   *int   `json:"refresh_max_interval_secs,omitempty"`
	RefreshBoundaryWindS  *int   `json:"refresh_boundary_window_secs,omitempty"`
	CacheRetentionDays    *int   `json:"cache_retention_days,omitempty"`
	CacheMaxEntryAgeHours *int   `json:"cache_max_entry_age_hours,omitempty"`
}

func (s *SettingsService) GetDynamicSettings(ctx context.Context) (*DynamicSettings, error) {
	if err := s.repo.InitSchema(ctx); err != nil {
		return nil, err
	}

	ds := &DynamicSettings{}

	if val, _ := s.repo.Get(ctx, domain.KeyDefaultExchange); val != "" {
		ds.DefaultExchange = val
	}
	ds.RefreshMinIntervalS = s.getInt(ctx, domain.KeyRefreshMinInterval)
	ds.RefreshBaseIntervalS = s.getInt(ctx, domain.KeyRefreshBaseInterval)
	ds.RefreshMaxIntervalS = s.getInt(ctx, domain.KeyRefreshMaxInterval)
	ds.RefreshBoundaryWindS = s.getInt(ctx, domain.KeyRefreshBoundaryWindow)
	ds.CacheRetentionDays = s.getInt(ctx, domain.KeyCacheRetentionDays)
	ds.CacheMaxEntryAgeHours = s.getInt(ctx, domain.KeyCacheMaxEntryAgeHours)

	return ds, nil
}

func (s *SettingsService) getInt(ctx context.Context, key string) *int {
	val, _ := s.repo.Get(ctx, key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ApplyTo layers the stored overrides onto an env-derived config.
// Overrides are staged on a copy and validated before they touch the
// live config, so an invalid stored combination really is ignored.
func (s *SettingsService) ApplyTo(ctx context.Context, cfg *config.Config) error {
	ds, err := s.GetDynamicSettings(ctx)
	if err != nil {
		return err
	}

	staged := *cfg

	if ds.DefaultExchange != "" {
		staged.Refresh.DefaultExchange = ds.DefaultExchange
	}
	if ds.RefreshMinIntervalS != nil {
		staged.Refresh.MinInterval = time.Duration(*ds.RefreshMinIntervalS) * time.Second
	}
	if ds.RefreshBaseIntervalS != nil {
		staged.Refresh.BaseInterval = time.Duration(*ds.RefreshBaseIntervalS) * time.Second
	}
	if ds.RefreshMaxIntervalS != nil {
		staged.Refresh.MaxInterval = time.Duration(*ds.RefreshMaxIntervalS) * time.Second
	}
	if ds.RefreshBoundaryWindS != nil {
		staged.Refresh.BoundaryWindow = time.Duration(*ds.RefreshBoundaryWindS) * time.Second
	}
	if ds.CacheRetentionDays != nil {
		staged.Cache.Retention = time.Duration(*ds.CacheRetentionDays) * 24 * time.Hour
	}
	if ds.CacheMaxEntryAgeHours != nil {
		staged.Cache.MaxEntryAge = time.Duration(*ds.CacheMaxEntryAgeHours) * time.Hour
	}

	if err := staged.Validate(); err != nil {
		return err
	}

	*cfg = staged
	return nil
}

func (s *SettingsService) SetDefaultExchange(ctx context.Context, v string) error {
	return s.repo.Set(ctx, domain.KeyDefaultExchange, v)
}

func (s *SettingsService) SetRefreshMinInterval(ctx context.Context, secs int) error {
	return s.setNonNegative(ctx, domain.KeyRefreshMinInterval, secs)
}

func (s *SettingsService) SetRefreshBaseInterval(ctx context.Context, secs int) error {
	return s.setNonNegative(ctx, domain.KeyRefreshBaseInterval, secs)
}

func (s *SettingsService) SetRefreshMaxInterval(ctx context.Context, secs int) error {
	return s.setNonNegative(ctx, domain.KeyRefreshMaxInterval, secs)
}

func (s *SettingsService) SetRefreshBoundaryWindow(ctx context.Context, secs int) error {
	return s.setNonNegative(ctx, domain.KeyRefreshBoundaryWindow, secs)
}

func (s *SettingsService) SetCacheRetentionDays(ctx context.Context, days int) error {
	return s.setNonNegative(ctx, domain.KeyCacheRetentionDays, days)
}

func (s *SettingsService) SetCacheMaxEntryAge(ctx context.Context, hours int) error {
	return s.setNonNegative(ctx, domain.KeyCacheMaxEntryAgeHours, hours)
}

func (s *SettingsService) setNonNegative(ctx context.Context, key string, v int) error {
	if v < 0 {
		v = 0
	}
	return s.repo.Set(ctx, key, fmt.Sprintf("%d", v))
}
