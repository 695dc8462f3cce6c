package domain

import (
	"time"
)

// SessionPhase is where an exchange sits in its trading day.
type SessionPhase string

const (
	PhasePreMarket  SessionPhase = "pre_market"
	PhaseOpen       SessionPhase = "open"
	PhasePostMarket SessionPhase = "post_market"
	PhaseClosed     SessionPhase = "closed"
	PhaseHoliday    SessionPhase = "holiday"
)

// Active reports whether prices are moving in this phase. Extended
// hours count: pre and post market trade, just thinner.
func (p SessionPhase) Active() bool {
	switch p {
	case PhasePreMarket, PhaseOpen, PhasePostMarket:
		return true
	}
	return false
}

// SessionState is the calendar's answer for one exchange at one
// instant. TradingDate anchors the session segment: for active phases
// it is the date of the running session, for closed and holiday spans
// it is the date of the next open, so a whole weekend collapses into a
// single segment.
type SessionState struct {
	Exchange    string       `json:"exchange"`
	Phase       SessionPhase `json:"phase"`
	TradingDate string       `json:"trading_date"`
	NextOpen    time.Time    `json:"next_open"`
	NextClose   time.Time    `json:"next_close"`
}

// Marker collapses a session state into the string persisted next to
// each cache entry. Two instants share a marker exactly when no
// session-changing event lies between them.
func (s SessionState) Marker() string {
	return s.Exchange + "|" + s.TradingDate + "|" + string(s.Phase)
}

// CalendarOracle answers trading-session questions. The market core
// never computes calendars itself; it consumes this capability.
type CalendarOracle interface {
	SessionState(exchange string, at time.Time) (SessionState, error)
}
