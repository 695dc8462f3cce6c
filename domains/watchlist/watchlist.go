package watchlist

import (
	"context"
	"errors"
	"time"
)

var (
	ErrListNotFound  = errors.New("watchlist not found")
	ErrDuplicateList = errors.New("watchlist already exists")
)

// Entry is one tracked symbol inside a list. Alias is the display name
// the user chose; empty means show the provider description.
type Entry struct {
	Symbol string `json:"symbol"`
	Alias  string `json:"alias,omitempty"`
}

type Watchlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Entries     []Entry   `json:"entries"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (w Watchlist) Symbols() []string {
	out := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		out = append(out, e.Symbol)
	}
	return out
}

// Request payloads consumed by the REST layer and checked by the
// validations package.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddSymbolRequest struct {
	Symbol string `json:"symbol"`
	Alias  string `json:"alias"`
}

type IWatchlistUsecase interface {
	Create(ctx context.Context, name, description string) (Watchlist, error)
	Get(ctx context.Context, id string) (Watchlist, error)
	List(ctx context.Context) ([]Watchlist, error)
	Update(ctx context.Context, list Watchlist) error
	Delete(ctx context.Context, id string) error

	AddSymbol(ctx context.Context, listID, symbol, alias string) (Watchlist, error)
	RemoveSymbol(ctx context.Context, listID, symbol string) (Watchlist, error)

	// TrackedSymbols is the deduplicated union across every list; it
	// feeds the refresh scheduler.
	TrackedSymbols(ctx context.Context) []string
}
