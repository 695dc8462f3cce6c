package calendar

var weekdaysMonFri = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// US market holidays, kept two years deep. Operators extend via the
// calendar override file.
var usHolidays = []string{
	"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18",
	"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01",
	"2025-11-27", "2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03",
	"2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07",
	"2026-11-26", "2026-12-25",
}

var defaultSchedules = map[string]Schedule{
	"NYSE": {
		Timezone:  "America/New_York",
		Weekdays:  weekdaysMonFri,
		PreOpen:   "04:00",
		Open:      "09:30",
		Close:     "16:00",
		PostClose: "20:00",
		Holidays:  usHolidays,
	},
	"NASDAQ": {
		Timezone:  "America/New_York",
		Weekdays:  weekdaysMonFri,
		PreOpen:   "04:00",
		Open:      "09:30",
		Close:     "16:00",
		PostClose: "20:00",
		Holidays:  usHolidays,
	},
	"LSE": {
		Timezone:  "Europe/London",
		Weekdays:  weekdaysMonFri,
		PreOpen:   "08:00",
		Open:      "08:00",
		Close:     "16:30",
		PostClose: "16:30",
		Holidays:  []string{"2025-12-25", "2025-12-26", "2026-01-01"},
	},
	// Crypto venues never close.
	"CME_CRYPTO": {
		AlwaysOpen: true,
	},
}

// Yahoo-style exchange codes mapped onto the schedules above. GDAX is
// the legacy Coinbase code still reported for crypto pairs.
var defaultAliases = map[string]string{
	"NYQ":      "NYSE",
	"ASE":      "NYSE",
	"PCX":      "NYSE",
	"NYSEARCA": "NYSE",
	"NMS":      "NASDAQ",
	"NGM":      "NASDAQ",
	"NCM":      "NASDAQ",
	"NASDAQGS": "NASDAQ",
	"NASDAQGM": "NASDAQ",
	"GDAX":     "CME_CRYPTO",
	"CCC":      "CME_CRYPTO",
	"CCY":      "CME_CRYPTO",
}
