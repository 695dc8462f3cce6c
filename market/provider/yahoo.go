package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	defaultTimeout = 15 * time.Second

	// Quote endpoints reject requests without a browser-ish agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	newsPerSymbol   = 10
	newsConcurrency = 4
)

// fastQuoteFields trims the batch response when only the price matters.
var fastQuoteFields = strings.Join([]string{
	"symbol", "regularMarketPrice", "regularMarketPreviousClose", "marketState", "currency",
}, ",")

// YahooProvider implements domain.PriceProvider against the Yahoo
// quote API. Quotes, fast quotes and meta ride the batch endpoint in a
// single call; news has no batch form so symbols fan out individually.
type YahooProvider struct {
	client  *http.Client
	baseURL string
}

func NewYahooProvider(baseURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &YahooProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *YahooProvider) FetchBatch(ctx context.Context, symbols []string, kind domain.DataKind) (map[string]domain.FetchResult, error) {
	if len(symbols) == 0 {
		return map[string]domain.FetchResult{}, nil
	}
	if kind == domain.KindNews {
		return p.fetchNewsBatch(ctx, symbols)
	}
	return p.fetchQuoteBatch(ctx, symbols, kind)
}

func (p *YahooProvider) fetchQuoteBatch(ctx context.Context, symbols []string, kind domain.DataKind) (map[string]domain.FetchResult, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	if kind == domain.KindFastQuote {
		params.Set("fields", fastQuoteFields)
	}

	var payload yahooQuoteResponse
	if err := p.getJSON(ctx, "/v7/finance/quote?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if payload.QuoteResponse.Error != nil {
		return nil, &domain.ProviderError{
			Code: domain.ProviderCodeHTTP,
			Err:  fmt.Errorf("%s: %s", payload.QuoteResponse.Error.Code, payload.QuoteResponse.Error.Description),
		}
	}

	byTicker := make(map[string]yahooQuote, len(payload.QuoteResponse.Result))
	for _, q := range payload.QuoteResponse.Result {
		byTicker[domain.NormalizeSymbol(q.Symbol)] = q
	}

	out := make(map[string]domain.FetchResult, len(symbols))
	for _, sym := range symbols {
		ticker := domain.NormalizeSymbol(sym)
		q, ok := byTicker[ticker]
		if !ok {
			// Upstream silently drops symbols it does not know.
			out[ticker] = domain.FetchResult{
				Symbol: ticker,
				Err: &domain.ProviderError{
					Symbol: ticker,
					Code:   domain.ProviderCodeNotFound,
					Err:    fmt.Errorf("symbol not in quote response"),
				},
			}
			continue
		}
		res, err := encodeResult(ticker, q, kind)
		if err != nil {
			out[ticker] = domain.FetchResult{
				Symbol: ticker,
				Err: &domain.ProviderError{
					Symbol: ticker, Code: domain.ProviderCodeDecode, Err: err,
				},
			}
			continue
		}
		out[ticker] = res
	}
	return out, nil
}

func encodeResult(ticker string, q yahooQuote, kind domain.DataKind) (domain.FetchResult, error) {
	var value any
	switch kind {
	case domain.KindMeta:
		value = domain.TickerInfo{
			Symbol:    ticker,
			Exchange:  q.Exchange,
			ShortName: q.ShortName,
			LongName:  q.LongName,
			QuoteType: q.QuoteType,
			Currency:  q.Currency,
		}
	default:
		description := q.LongName
		if description == "" {
			description = q.ShortName
		}
		if description == "" {
			description = ticker
		}
		value = domain.Quote{
			Symbol:           ticker,
			Description:      description,
			Price:            q.RegularMarketPrice,
			PreviousClose:    q.RegularMarketPreviousClose,
			DayLow:           q.RegularMarketDayLow,
			DayHigh:          q.RegularMarketDayHigh,
			FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
			FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
			Currency:         q.Currency,
			MarketState:      q.MarketState,
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.FetchResult{}, err
	}
	return domain.FetchResult{Symbol: ticker, Payload: raw, Exchange: q.Exchange}, nil
}

// fetchNewsBatch fans out one search call per symbol. A symbol's
// failure stays its own; the batch errors only if the context dies.
func (p *YahooProvider) fetchNewsBatch(ctx context.Context, symbols []string) (map[string]domain.FetchResult, error) {
	out := make(map[string]domain.FetchResult, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(newsConcurrency)
	for _, sym := range symbols {
		ticker := domain.NormalizeSymbol(sym)
		g.Go(func() error {
			res := p.fetchNews(gctx, ticker)
			mu.Lock()
			out[ticker] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *YahooProvider) fetchNews(ctx context.Context, ticker string) domain.FetchResult {
	params := url.Values{}
	params.Set("q", ticker)
	params.Set("newsCount", fmt.Sprintf("%d", newsPerSymbol))
	params.Set("quotesCount", "0")

	var payload yahooSearchResponse
	if err := p.getJSON(ctx, "/v1/finance/search?"+params.Encode(), &payload); err != nil {
		return domain.FetchResult{Symbol: ticker, Err: err}
	}

	items := make([]domain.NewsItem, 0, len(payload.News))
	for _, n := range payload.News {
		items = append(items, domain.NewsItem{
			Title:       n.Title,
			Publisher:   n.Publisher,
			Link:        n.Link,
			PublishedAt: time.Unix(n.ProviderPublishTime, 0).UTC(),
		})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return domain.FetchResult{
			Symbol: ticker,
			Err:    &domain.ProviderError{Symbol: ticker, Code: domain.ProviderCodeDecode, Err: err},
		}
	}
	return domain.FetchResult{Symbol: ticker, Payload: raw}
}

func (p *YahooProvider) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Code: domain.ProviderCodeNetwork, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{
			Code:      domain.ProviderCodeHTTP,
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("upstream returned status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &domain.ProviderError{Code: domain.ProviderCodeDecode, Err: fmt.Errorf("failed to decode upstream response: %w", err)}
	}
	return nil
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuote `json:"result"`
		Error  *yahooError  `json:"error"`
	} `json:"quoteResponse"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooQuote struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	ShortName                  string  `json:"shortName"`
	LongName                   string  `json:"longName"`
	Exchange                   string  `json:"exchange"`
	FullExchangeName           string  `json:"fullExchangeName"`
	Currency                   string  `json:"currency"`
	MarketState                string  `json:"marketState"`
	QuoteType                  string  `json:"quoteType"`
}

type yahooSearchResponse struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}
