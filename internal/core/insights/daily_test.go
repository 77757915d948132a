package insights

import (
	"testing"
	"time"

	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDaysInRange(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []string
	}{
		{
			name:  "single day",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:  []string{"2026-03-10"},
		},
		{
			name:  "inclusive of both ends",
			start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			want:  []string{"2026-03-10", "2026-03-11", "2026-03-12"},
		},
		{
			name:  "intraday timestamps normalize to midnight",
			start: time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
			end:   time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC),
			want:  []string{"2026-03-10", "2026-03-11"},
		},
		{
			name:  "month boundary",
			start: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			want:  []string{"2026-02-27", "2026-02-28", "2026-03-01"},
		},
		{
			name:  "inverted range is empty",
			start: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DaysInRange(tc.start, tc.end))
		})
	}
}

func TestNewDailyStore_EagerDayEntries(t *testing.T) {
	days := DaysInRange(
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	)
	store := NewDailyStore(days)

	require.Len(t, store, 10)
	for _, day := range days {
		require.NotNil(t, store[day])
		require.Empty(t, store[day])
	}
}

func TestDailyStore_SetIgnoresUnknownDays(t *testing.T) {
	store := NewDailyStore([]string{"2026-03-01"})

	store.Set("2026-03-01", metric.KeySpend, decimal.NewFromInt(5))
	store.Set("2026-04-01", metric.KeySpend, decimal.NewFromInt(99))

	require.Len(t, store, 1)
	require.True(t, decimal.NewFromInt(5).Equal(store.Get("2026-03-01", metric.KeySpend)))
	require.True(t, store.Get("2026-04-01", metric.KeySpend).IsZero())
}

func TestParseDay_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 30, 17, 4, 5, 0, time.UTC)
	day := FormatDay(ts)
	require.Equal(t, "2026-08-30", day)

	parsed, err := ParseDay(day)
	require.NoError(t, err)
	require.Equal(t, DayOf(ts), parsed)

	_, err = ParseDay("30/08/2026")
	require.Error(t, err)
}
