package calendar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-06 is a regular Friday; New York is still on EST (UTC-5),
// so the NYSE session runs 14:30-21:00 UTC.
func TestOracle_NYSEPhases(t *testing.T) {
	oracle := NewOracle()

	tests := []struct {
		name        string
		at          time.Time
		wantPhase   domain.SessionPhase
		wantTrading string
	}{
		{
			name:        "pre market",
			at:          time.Date(2026, 3, 6, 13, 0, 0, 0, time.UTC),
			wantPhase:   domain.PhasePreMarket,
			wantTrading: "2026-03-06",
		},
		{
			name:        "regular session",
			at:          time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC),
			wantPhase:   domain.PhaseOpen,
			wantTrading: "2026-03-06",
		},
		{
			name:        "post market",
			at:          time.Date(2026, 3, 6, 22, 0, 0, 0, time.UTC),
			wantPhase:   domain.PhasePostMarket,
			wantTrading: "2026-03-06",
		},
		{
			name:      "overnight closed anchored to next open",
			at:        time.Date(2026, 3, 7, 4, 0, 0, 0, time.UTC), // Friday 23:00 EST
			wantPhase: domain.PhaseClosed,
			// Next open is Monday.
			wantTrading: "2026-03-09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := oracle.SessionState("NYSE", tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.Equal(t, tt.wantTrading, st.TradingDate)
			assert.Equal(t, "NYSE", st.Exchange)
		})
	}
}

// The whole weekend is one closed segment: Friday night, Saturday and
// Sunday all answer with the same marker, so weekend reads stay cache
// hits.
func TestOracle_WeekendIsOneSegment(t *testing.T) {
	oracle := NewOracle()

	instants := []time.Time{
		time.Date(2026, 3, 7, 4, 0, 0, 0, time.UTC),  // Friday 23:00 EST
		time.Date(2026, 3, 7, 18, 0, 0, 0, time.UTC), // Saturday
		time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC), // Sunday
	}

	var markers []string
	for _, at := range instants {
		st, err := oracle.SessionState("NYSE", at)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseClosed, st.Phase)
		markers = append(markers, st.Marker())
	}
	assert.Equal(t, markers[0], markers[1])
	assert.Equal(t, markers[1], markers[2])

	// Monday's open is a different segment.
	st, err := oracle.SessionState("NYSE", time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, st.Phase)
	assert.NotEqual(t, markers[0], st.Marker())
}

func TestOracle_Holiday(t *testing.T) {
	oracle := NewOracle()

	// Good Friday 2026.
	st, err := oracle.SessionState("NYSE", time.Date(2026, 4, 3, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseHoliday, st.Phase)
	assert.Equal(t, "2026-04-06", st.TradingDate, "anchored to the Monday open")
}

func TestOracle_NextBoundaries(t *testing.T) {
	oracle := NewOracle()

	// Mid-session Friday: next close is today 16:00 EST, next open is
	// Monday 09:30 EDT (DST starts Sunday March 8).
	st, err := oracle.SessionState("NYSE", time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, st.NextClose.Equal(time.Date(2026, 3, 6, 21, 0, 0, 0, time.UTC)))
	assert.True(t, st.NextOpen.Equal(time.Date(2026, 3, 9, 13, 30, 0, 0, time.UTC)))
}

func TestOracle_Aliases(t *testing.T) {
	oracle := NewOracle()
	at := time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)

	direct, err := oracle.SessionState("NASDAQ", at)
	require.NoError(t, err)
	aliased, err := oracle.SessionState("NMS", at)
	require.NoError(t, err)
	assert.Equal(t, direct.Marker(), aliased.Marker())

	lower, err := oracle.SessionState("nms", at)
	require.NoError(t, err)
	assert.Equal(t, direct.Marker(), lower.Marker())
}

func TestOracle_CryptoNeverCloses(t *testing.T) {
	oracle := NewOracle()

	// Sunday night.
	st, err := oracle.SessionState("GDAX", time.Date(2026, 3, 8, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, st.Phase)
}

// Unknown venues are treated as open so their symbols keep refreshing
// instead of going permanently stale.
func TestOracle_UnknownExchangeStaysOpen(t *testing.T) {
	oracle := NewOracle()

	st, err := oracle.SessionState("MYSTERY", time.Date(2026, 3, 8, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, st.Phase)
}

func TestOracle_LoadFileOverrides(t *testing.T) {
	oracle := NewOracle()

	path := filepath.Join(t.TempDir(), "calendar.json")
	payload := `{
		"exchanges": {
			"XETRA": {
				"timezone": "Europe/Berlin",
				"weekdays": ["Mon", "Tue", "Wed", "Thu", "Fri"],
				"pre_open": "08:00",
				"open": "09:00",
				"close": "17:30",
				"post_close": "22:00"
			}
		},
		"aliases": {"GER": "XETRA"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
	require.NoError(t, oracle.LoadFile(path))

	// Friday 10:00 Berlin time (CET, UTC+1).
	st, err := oracle.SessionState("GER", time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "XETRA", st.Exchange)
	assert.Equal(t, domain.PhaseOpen, st.Phase)
}

func TestOracle_LoadFileErrors(t *testing.T) {
	oracle := NewOracle()

	assert.Error(t, oracle.LoadFile(filepath.Join(t.TempDir(), "missing.json")))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	assert.Error(t, oracle.LoadFile(path))
}
