package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	domainWatchlist "github.com/andriy-git/stocksTUI/domains/watchlist"
	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatchlistModel is the GORM row for a list; entries hang off it.
type WatchlistModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	Entries     []WatchlistEntryModel `gorm:"foreignKey:WatchlistID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WatchlistModel) TableName() string { return "watchlists" }

type WatchlistEntryModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	WatchlistID string `gorm:"index:idx_watchlist_symbol,unique;not null"`
	Symbol      string `gorm:"index:idx_watchlist_symbol,unique;not null"`
	Alias       string
	CreatedAt   time.Time
}

func (WatchlistEntryModel) TableName() string { return "watchlist_entries" }

type watchlistService struct {
	db *gorm.DB
}

// defaultSeed is the list created on first run so a fresh install has
// something to refresh.
var defaultSeed = []string{"AAPL", "GOOG", "MSFT", "SPY"}

func NewWatchlistService(db *gorm.DB) (domainWatchlist.IWatchlistUsecase, error) {
	if err := db.AutoMigrate(&WatchlistModel{}, &WatchlistEntryModel{}); err != nil {
		return nil, err
	}
	s := &watchlistService{db: db}
	s.seedDefault()
	return s, nil
}

func (s *watchlistService) seedDefault() {
	var count int64
	if err := s.db.Model(&WatchlistModel{}).Count(&count).Error; err != nil || count > 0 {
		return
	}
	list, err := s.Create(context.Background(), "default", "Seeded on first run")
	if err != nil {
		logrus.WithError(err).Warn("[WATCHLIST] could not seed default list")
		return
	}
	for _, sym := range defaultSeed {
		if _, err := s.AddSymbol(context.Background(), list.ID, sym, ""); err != nil {
			logrus.WithError(err).Warnf("[WATCHLIST] could not seed %s", sym)
		}
	}
	logrus.Infof("[WATCHLIST] seeded default list with %d symbols", len(defaultSeed))
}

func (s *watchlistService) Create(ctx context.Context, name, description string) (domainWatchlist.Watchlist, error) {
	if err := validations.ValidateCreateWatchlist(ctx, domainWatchlist.CreateRequest{Name: name, Description: description}); err != nil {
		return domainWatchlist.Watchlist{}, err
	}

	model := WatchlistModel{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	err := s.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			return domainWatchlist.Watchlist{}, domainWatchlist.ErrDuplicateList
		}
		return domainWatchlist.Watchlist{}, err
	}
	return toDomainList(model), nil
}

func (s *watchlistService) Get(ctx context.Context, id string) (domainWatchlist.Watchlist, error) {
	var model WatchlistModel
	err := s.db.WithContext(ctx).Preload("Entries").First(&model, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domainWatchlist.Watchlist{}, domainWatchlist.ErrListNotFound
		}
		return domainWatchlist.Watchlist{}, err
	}
	return toDomainList(model), nil
}

func (s *watchlistService) List(ctx context.Context) ([]domainWatchlist.Watchlist, error) {
	var models []WatchlistModel
	if err := s.db.WithContext(ctx).Preload("Entries").Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domainWatchlist.Watchlist, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainList(m))
	}
	return out, nil
}

func (s *watchlistService) Update(ctx context.Context, list domainWatchlist.Watchlist) error {
	if err := validations.ValidateCreateWatchlist(ctx, domainWatchlist.CreateRequest{Name: list.Name, Description: list.Description}); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&WatchlistModel{}).
		Where("id = ?", list.ID).
		Updates(map[string]any{"name": strings.TrimSpace(list.Name), "description": strings.TrimSpace(list.Description)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainWatchlist.ErrListNotFound
	}
	return nil
}

func (s *watchlistService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&WatchlistEntryModel{}, "watchlist_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&WatchlistModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainWatchlist.ErrListNotFound
		}
		return nil
	})
}

func (s *watchlistService) AddSymbol(ctx context.Context, listID, symbol, alias string) (domainWatchlist.Watchlist, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := validations.ValidateAddSymbol(ctx, domainWatchlist.AddSymbolRequest{Symbol: symbol, Alias: alias}); err != nil {
		return domainWatchlist.Watchlist{}, err
	}
	if _, err := s.Get(ctx, listID); err != nil {
		return domainWatchlist.Watchlist{}, err
	}

	entry := WatchlistEntryModel{WatchlistID: listID, Symbol: symbol, Alias: strings.TrimSpace(alias)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "watchlist_id"}, {Name: "symbol"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"alias": entry.Alias}),
	}).Create(&entry).Error
	if err != nil {
		return domainWatchlist.Watchlist{}, err
	}
	return s.Get(ctx, listID)
}

func (s *watchlistService) RemoveSymbol(ctx context.Context, listID, symbol string) (domainWatchlist.Watchlist, error) {
	symbol = domain.NormalizeSymbol(symbol)
	res := s.db.WithContext(ctx).Delete(&WatchlistEntryModel{}, "watchlist_id = ? AND symbol = ?", listID, symbol)
	if res.Error != nil {
		return domainWatchlist.Watchlist{}, res.Error
	}
	return s.Get(ctx, listID)
}

// TrackedSymbols is the deduplicated union across every list. It feeds
// the scheduler, so failures degrade to an empty set instead of erroring.
func (s *watchlistService) TrackedSymbols(ctx context.Context) []string {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&WatchlistEntryModel{}).
		Distinct("symbol").Pluck("symbol", &symbols).Error
	if err != nil {
		logrus.WithError(err).Warn("[WATCHLIST] could not load tracked symbols")
		return nil
	}
	sort.Strings(symbols)
	return symbols
}

func toDomainList(m WatchlistModel) domainWatchlist.Watchlist {
	entries := make([]domainWatchlist.Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		entries = append(entries, domainWatchlist.Entry{Symbol: e.Symbol, Alias: e.Alias})
	}
	return domainWatchlist.Watchlist{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Entries:     entries,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
