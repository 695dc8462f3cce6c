package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/sirupsen/logrus"
)

// Schedule declares one exchange's trading week. Clock fields are local
// "HH:MM" strings in the schedule's timezone. An exchange without
// extended hours sets PreOpen == Open and PostClose == Close.
type Schedule struct {
	Timezone   string   `json:"timezone"`
	Weekdays   []string `json:"weekdays"`
	PreOpen    string   `json:"pre_open"`
	Open       string   `json:"open"`
	Close      string   `json:"close"`
	PostClose  string   `json:"post_close"`
	AlwaysOpen bool     `json:"always_open,omitempty"`
	Holidays   []string `json:"holidays,omitempty"`
}

// Oracle answers session-state questions from declarative schedule
// data. It never guesses calendars: everything comes from the embedded
// defaults or a JSON override file. Unknown exchanges are reported as
// open so their symbols keep refreshing.
type Oracle struct {
	mu        sync.RWMutex
	schedules map[string]Schedule
	aliases   map[string]string
	holidays  map[string]map[string]bool
	memo      map[string]domain.SessionState
}

func NewOracle() *Oracle {
	o := &Oracle{
		schedules: make(map[string]Schedule),
		aliases:   make(map[string]string),
		holidays:  make(map[string]map[string]bool),
		memo:      make(map[string]domain.SessionState),
	}
	for name, sched := range defaultSchedules {
		o.addSchedule(name, sched)
	}
	for from, to := range defaultAliases {
		o.aliases[from] = to
	}
	return o
}

// LoadFile merges a JSON override on top of the defaults. Shape:
// {"exchanges": {"XETRA": {...}}, "aliases": {"GER": "XETRA"}}.
func (o *Oracle) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read calendar file: %w", err)
	}
	var payload struct {
		Exchanges map[string]Schedule `json:"exchanges"`
		Aliases   map[string]string   `json:"aliases"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode calendar file: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for name, sched := range payload.Exchanges {
		o.addSchedule(strings.ToUpper(name), sched)
	}
	for from, to := range payload.Aliases {
		o.aliases[strings.ToUpper(from)] = strings.ToUpper(to)
	}
	o.memo = make(map[string]domain.SessionState)
	logrus.Infof("[CALENDAR] loaded %d exchange overrides from %s", len(payload.Exchanges), path)
	return nil
}

func (o *Oracle) addSchedule(name string, sched Schedule) {
	name = strings.ToUpper(name)
	o.schedules[name] = sched
	days := make(map[string]bool, len(sched.Holidays))
	for _, d := range sched.Holidays {
		days[d] = true
	}
	o.holidays[name] = days
}

func (o *Oracle) SessionState(exchange string, at time.Time) (domain.SessionState, error) {
	name := strings.ToUpper(strings.TrimSpace(exchange))
	o.mu.RLock()
	if alias, ok := o.aliases[name]; ok {
		name = alias
	}
	sched, known := o.schedules[name]
	memoKey := name + "|" + strconv.FormatInt(at.Truncate(time.Minute).Unix(), 10)
	if st, ok := o.memo[memoKey]; ok {
		o.mu.RUnlock()
		return st, nil
	}
	holidays := o.holidays[name]
	o.mu.RUnlock()

	var st domain.SessionState
	switch {
	case !known:
		// Unknown venue: safer to keep refreshing than to sleep on it.
		st = domain.SessionState{
			Exchange:    name,
			Phase:       domain.PhaseOpen,
			TradingDate: at.UTC().Format("2006-01-02"),
		}
	case sched.AlwaysOpen:
		st = domain.SessionState{
			Exchange:    name,
			Phase:       domain.PhaseOpen,
			TradingDate: at.UTC().Format("2006-01-02"),
		}
	default:
		loc, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return domain.SessionState{}, fmt.Errorf("calendar timezone %q: %w", sched.Timezone, err)
		}
		st = computeState(name, sched, holidays, at.In(loc))
	}

	o.mu.Lock()
	if len(o.memo) > 8192 {
		o.memo = make(map[string]domain.SessionState)
	}
	o.memo[memoKey] = st
	o.mu.Unlock()
	return st, nil
}

func computeState(name string, sched Schedule, holidays map[string]bool, local time.Time) domain.SessionState {
	st := domain.SessionState{Exchange: name}

	today := local.Format("2006-01-02")
	if isTradingDay(sched, holidays, local) {
		preOpen := clockAt(local, sched.PreOpen)
		open := clockAt(local, sched.Open)
		close := clockAt(local, sched.Close)
		postClose := clockAt(local, sched.PostClose)

		switch {
		case !local.Before(preOpen) && local.Before(open):
			st.Phase = domain.PhasePreMarket
		case !local.Before(open) && local.Before(close):
			st.Phase = domain.PhaseOpen
		case !local.Before(close) && local.Before(postClose):
			st.Phase = domain.PhasePostMarket
		}
		if st.Phase != "" {
			st.TradingDate = today
			st.NextClose = close.UTC()
			if !local.Before(close) {
				st.NextClose = nextBoundary(sched, holidays, local, sched.Close)
			}
			st.NextOpen = nextBoundary(sched, holidays, local, sched.Open)
			return st
		}
	}

	// Outside any session: closed span anchored to the next open so a
	// whole weekend or holiday run shares one marker.
	st.Phase = domain.PhaseClosed
	if holidays[today] {
		st.Phase = domain.PhaseHoliday
	}
	st.NextOpen = nextBoundary(sched, holidays, local, sched.Open)
	st.NextClose = nextBoundary(sched, holidays, local, sched.Close)
	if !st.NextOpen.IsZero() {
		st.TradingDate = st.NextOpen.In(local.Location()).Format("2006-01-02")
	} else {
		st.TradingDate = today
	}
	return st
}

// nextBoundary finds the first future instant of the given local clock
// on a trading day. Scans at most a year ahead.
func nextBoundary(sched Schedule, holidays map[string]bool, local time.Time, clock string) time.Time {
	for offset := 0; offset < 366; offset++ {
		day := local.AddDate(0, 0, offset)
		if !isTradingDay(sched, holidays, day) {
			continue
		}
		at := clockAt(day, clock)
		if at.After(local) {
			return at.UTC()
		}
	}
	return time.Time{}
}

func isTradingDay(sched Schedule, holidays map[string]bool, day time.Time) bool {
	if holidays[day.Format("2006-01-02")] {
		return false
	}
	weekday := day.Weekday().String()[:3]
	for _, d := range sched.Weekdays {
		if strings.EqualFold(d, weekday) {
			return true
		}
	}
	return false
}

func clockAt(day time.Time, clock string) time.Time {
	parts := strings.SplitN(clock, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute := 0
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
