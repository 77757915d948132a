package insights

import (
	"time"

	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
)

// DayFormat is the canonical day key: ISO date, UTC midnight.
const DayFormat = "2006-01-02"

// DayOf truncates a timestamp to UTC midnight.
func DayOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a timestamp as a day key.
func FormatDay(t time.Time) string {
	return DayOf(t).Format(DayFormat)
}

// ParseDay parses a day key back to UTC midnight.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayFormat, s, time.UTC)
}

// DaysInRange enumerates every calendar day from start to end inclusive,
// normalized to UTC midnight, ascending. An inverted range is empty.
func DaysInRange(start, end time.Time) []string {
	from := DayOf(start)
	to := DayOf(end)

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayFormat))
	}
	return days
}

// DailyStore holds per-day metric values for one request. Entries are
// created eagerly for every day in the requested range, before any
// value is known, so downstream summation never hits an absent day.
// The store is request-scoped; durability belongs to the day cache.
type DailyStore map[string]map[metric.Key]decimal.Decimal

// NewDailyStore creates a store with one empty entry per day.
func NewDailyStore(days []string) DailyStore {
	store := make(DailyStore, len(days))
	for _, day := range days {
		store[day] = make(map[metric.Key]decimal.Decimal)
	}
	return store
}

// Set records a value for (day, key). Days outside the initialized
// range are ignored — the provider occasionally returns records beyond
// the requested window.
func (s DailyStore) Set(day string, key metric.Key, value decimal.Decimal) {
	if _, ok := s[day]; !ok {
		return
	}
	s[day][key] = value
}

// Get returns the value for (day, key), zero when absent.
func (s DailyStore) Get(day string, key metric.Key) decimal.Decimal {
	return s[day][key]
}
