package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheKeyNormalizes(t *testing.T) {
	assert.Equal(t, NewCacheKey("AAPL", KindQuote), NewCacheKey(" aapl ", KindQuote))
	assert.Equal(t, "AAPL/quote", NewCacheKey("aapl", KindQuote).String())
}

func TestParseDataKind(t *testing.T) {
	kind, err := ParseDataKind(" Quote ")
	require.NoError(t, err)
	assert.Equal(t, KindQuote, kind)

	_, err = ParseDataKind("candles")
	assert.Error(t, err)
}

func TestCacheEntryHasValue(t *testing.T) {
	assert.False(t, CacheEntry{}.HasValue())
	// A recorded error without a successful fetch is not a value.
	assert.False(t, CacheEntry{LastError: "boom"}.HasValue())
	// A payload without a fetch time is not trustworthy either.
	assert.False(t, CacheEntry{Value: []byte("{}")}.HasValue())
	assert.True(t, CacheEntry{Value: []byte("{}"), FetchedAt: time.Now()}.HasValue())
}

func TestQuoteChange(t *testing.T) {
	q := Quote{Price: 110, PreviousClose: 100}
	assert.InDelta(t, 10, q.Change(), 1e-9)
	assert.InDelta(t, 10, q.ChangePercent(), 1e-9)

	// No previous close means no percent, not a division by zero.
	assert.Zero(t, Quote{Price: 110}.ChangePercent())
}
