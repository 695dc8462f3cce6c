package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DataKind identifies which payload family a cache entry holds.
type DataKind string

const (
	KindQuote     DataKind = "quote"
	KindFastQuote DataKind = "fast_quote"
	KindMeta      DataKind = "meta"
	KindNews      DataKind = "news"
)

func (k DataKind) Valid() bool {
	switch k {
	case KindQuote, KindFastQuote, KindMeta, KindNews:
		return true
	}
	return false
}

func ParseDataKind(s string) (DataKind, error) {
	k := DataKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown data kind %q", s)
	}
	return k, nil
}

// CacheKey is the identity of a cached record: one symbol, one kind.
type CacheKey struct {
	Symbol string   `json:"symbol"`
	Kind   DataKind `json:"kind"`
}

func NewCacheKey(symbol string, kind DataKind) CacheKey {
	return CacheKey{Symbol: NormalizeSymbol(symbol), Kind: kind}
}

func (k CacheKey) String() string {
	return k.Symbol + "/" + string(k.Kind)
}

// NormalizeSymbol uppercases and trims a raw ticker so "aapl " and
// "AAPL" land on the same cache key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CacheEntry is one row of the market cache. Value stays opaque here;
// consumers decode it with the Parse helpers below. An entry that has
// never fetched successfully has no Value and a zero FetchedAt, but may
// still carry LastError from the most recent failed attempt.
type CacheEntry struct {
	Key           CacheKey  `json:"key"`
	Value         []byte    `json:"value,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
	SessionMarker string    `json:"session_marker,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

func (e CacheEntry) HasValue() bool {
	return len(e.Value) > 0 && !e.FetchedAt.IsZero()
}

func (e CacheEntry) Age(now time.Time) time.Duration {
	if e.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(e.FetchedAt)
}

// Quote is the full price payload for a symbol.
type Quote struct {
	Symbol           string  `json:"symbol"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	PreviousClose    float64 `json:"previous_close"`
	DayLow           float64 `json:"day_low"`
	DayHigh          float64 `json:"day_high"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low"`
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high"`
	Currency         string  `json:"currency,omitempty"`
	MarketState      string  `json:"market_state,omitempty"`
}

func (q Quote) Change() float64 {
	return q.Price - q.PreviousClose
}

func (q Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// TickerInfo is the metadata payload: which exchange a symbol trades on
// plus display names. The exchange feeds the calendar lookup.
type TickerInfo struct {
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
	ShortName string `json:"short_name,omitempty"`
	LongName  string `json:"long_name,omitempty"`
	QuoteType string `json:"quote_type,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// NewsItem is one headline in a news payload (stored as a list).
type NewsItem struct {
	Title       string    `json:"title"`
	Publisher   string    `json:"publisher,omitempty"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
}

func ParseQuote(value []byte) (Quote, error) {
	var q Quote
	if err := json.Unmarshal(value, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote payload: %w", err)
	}
	return q, nil
}

func ParseTickerInfo(value []byte) (TickerInfo, error) {
	var info TickerInfo
	if err := json.Unmarshal(value, &info); err != nil {
		return TickerInfo{}, fmt.Errorf("decode ticker info payload: %w", err)
	}
	return info, nil
}

func ParseNews(value []byte) ([]NewsItem, error) {
	var items []NewsItem
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, fmt.Errorf("decode news payload: %w", err)
	}
	return items, nil
}
