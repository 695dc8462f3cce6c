package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteFixture = `{
	"quoteResponse": {
		"result": [
			{
				"symbol": "AAPL",
				"regularMarketPrice": 195.10,
				"regularMarketPreviousClose": 193.00,
				"regularMarketDayLow": 192.50,
				"regularMarketDayHigh": 196.20,
				"fiftyTwoWeekLow": 164.08,
				"fiftyTwoWeekHigh": 199.62,
				"shortName": "Apple Inc.",
				"longName": "Apple Inc.",
				"exchange": "NMS",
				"currency": "USD",
				"marketState": "REGULAR",
				"quoteType": "EQUITY"
			}
		],
		"error": null
	}
}`

func TestYahooProvider_QuoteBatch(t *testing.T) {
	var gotPath, gotSymbols, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbols = r.URL.Query().Get("symbols")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(quoteFixture))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	results, err := p.FetchBatch(context.Background(), []string{"aapl", "UNKNOWN"}, domain.KindQuote)
	require.NoError(t, err)

	assert.Equal(t, "/v7/finance/quote", gotPath)
	assert.Equal(t, "aapl,UNKNOWN", gotSymbols)
	assert.NotEmpty(t, gotAgent, "quote endpoint requires a user agent")

	// Symbols normalize to upper case in the result map.
	res := results["AAPL"]
	require.NoError(t, res.Err)
	assert.Equal(t, "NMS", res.Exchange)
	quote, err := domain.ParseQuote(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 195.10, quote.Price)
	assert.Equal(t, 193.00, quote.PreviousClose)
	assert.Equal(t, "Apple Inc.", quote.Description)

	// A symbol the upstream silently dropped is a per-symbol error.
	missing := results["UNKNOWN"]
	require.Error(t, missing.Err)
	var perr *domain.ProviderError
	require.ErrorAs(t, missing.Err, &perr)
	assert.Equal(t, domain.ProviderCodeNotFound, perr.Code)
}

func TestYahooProvider_MetaBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quoteFixture))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	results, err := p.FetchBatch(context.Background(), []string{"AAPL"}, domain.KindMeta)
	require.NoError(t, err)

	res := results["AAPL"]
	require.NoError(t, res.Err)
	info, err := domain.ParseTickerInfo(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, "NMS", info.Exchange)
	assert.Equal(t, "EQUITY", info.QuoteType)
}

func TestYahooProvider_FastQuoteTrimsFields(t *testing.T) {
	var gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFields = r.URL.Query().Get("fields")
		w.Write([]byte(quoteFixture))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	_, err := p.FetchBatch(context.Background(), []string{"AAPL"}, domain.KindFastQuote)
	require.NoError(t, err)
	assert.Contains(t, gotFields, "regularMarketPrice")
}

func TestYahooProvider_UpstreamStatusErrors(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		p := NewYahooProvider(srv.URL, 5*time.Second)
		_, err := p.FetchBatch(context.Background(), []string{"AAPL"}, domain.KindQuote)
		require.Error(t, err)
		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, domain.ProviderCodeHTTP, perr.Code)
		assert.Equal(t, tt.wantTransient, perr.Temporary(), "status %d", tt.status)
		srv.Close()
	}
}

func TestYahooProvider_APIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":{"code":"Bad Request","description":"Missing symbols"}}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	_, err := p.FetchBatch(context.Background(), []string{"AAPL"}, domain.KindQuote)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing symbols")
}

func TestYahooProvider_NewsFanOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/finance/search", r.URL.Path)
		q := r.URL.Query().Get("q")
		if q == "FAILS" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"news":[{"title":"` + q + ` rallies","publisher":"Newswire","link":"https://example.com/a","providerPublishTime":1767100000}]}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	results, err := p.FetchBatch(context.Background(), []string{"AAPL", "FAILS"}, domain.KindNews)
	require.NoError(t, err, "one symbol's failure must not sink the batch")

	good := results["AAPL"]
	require.NoError(t, good.Err)
	items, err := domain.ParseNews(good.Payload)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "AAPL rallies", items[0].Title)
	assert.Equal(t, "Newswire", items[0].Publisher)
	assert.False(t, items[0].PublishedAt.IsZero())

	assert.Error(t, results["FAILS"].Err)
}

func TestYahooProvider_EmptyBatch(t *testing.T) {
	p := NewYahooProvider("http://localhost:0", time.Second)
	results, err := p.FetchBatch(context.Background(), nil, domain.KindQuote)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestYahooProvider_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	}))
	defer srv.Close()

	p := NewYahooProvider(srv.URL, 5*time.Second)
	_, err := p.FetchBatch(context.Background(), []string{"AAPL"}, domain.KindQuote)
	require.Error(t, err)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ProviderCodeDecode, perr.Code)
}

func TestNewYahooProvider_Defaults(t *testing.T) {
	p := NewYahooProvider("", 0)
	assert.Equal(t, DefaultBaseURL, p.baseURL)
	assert.True(t, strings.HasPrefix(p.baseURL, "https://"))
}
