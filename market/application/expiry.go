package application

import (
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
)

// Staleness verdict reasons, surfaced on monitoring endpoints.
const (
	ReasonNoValue        = "no_value"
	ReasonMaxAge         = "max_age_exceeded"
	ReasonSessionChanged = "session_changed"
	ReasonSessionActive  = "session_active"
	ReasonFresh          = "fresh"

	// ReasonCalendarUnavailable marks verdicts made without an oracle
	// answer; the entry is treated stale so it keeps refreshing.
	ReasonCalendarUnavailable = "calendar_unavailable"
)

// ExpiryPolicy decides staleness from session markers instead of TTLs.
// It is pure: callers hand in the clock and both calendar answers, so
// tests drive it with synthetic states.
//
// The rules, in order: an entry without a value is stale; an entry past
// MaxEntryAge is stale no matter what the calendar says; an entry whose
// fetch-time marker differs from the current marker crossed a session
// boundary and is stale; otherwise it is stale exactly when the market
// is trading right now, because prices keep moving while a session runs.
// An entry fetched during a closed span stays fresh until that span ends.
type ExpiryPolicy struct {
	MaxEntryAge time.Duration
}

// DefaultMaxEntryAge caps how long any entry survives, trading calendar
// aside. Two days covers a normal weekend without going dark.
const DefaultMaxEntryAge = 48 * time.Hour

func NewExpiryPolicy(maxEntryAge time.Duration) ExpiryPolicy {
	if maxEntryAge <= 0 {
		maxEntryAge = DefaultMaxEntryAge
	}
	return ExpiryPolicy{MaxEntryAge: maxEntryAge}
}

func (p ExpiryPolicy) Evaluate(entry domain.CacheEntry, now time.Time, atFetch, atNow domain.SessionState) (bool, string) {
	if !entry.HasValue() {
		return true, ReasonNoValue
	}
	if p.MaxEntryAge > 0 && entry.Age(now) > p.MaxEntryAge {
		return true, ReasonMaxAge
	}
	if atFetch.Marker() != atNow.Marker() {
		return true, ReasonSessionChanged
	}
	if atNow.Phase.Active() {
		return true, ReasonSessionActive
	}
	return false, ReasonFresh
}

func (p ExpiryPolicy) IsStale(entry domain.CacheEntry, now time.Time, atFetch, atNow domain.SessionState) bool {
	stale, _ := p.Evaluate(entry, now, atFetch, atNow)
	return stale
}
