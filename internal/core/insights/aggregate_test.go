package insights

import (
	"testing"

	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testStore(days []string) DailyStore {
	return NewDailyStore(days)
}

func TestAggregateRange_PlainSums(t *testing.T) {
	days := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeySpend, dec("10.50"))
	store.Set("2026-03-02", metric.KeySpend, dec("4.25"))
	// day 3 left unset on purpose

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{metric.KeySpend})

	require.True(t, dec("14.75").Equal(totals[metric.KeySpend]), "got %s", totals[metric.KeySpend])
}

func TestAggregateRange_RatioFromSummedComponents(t *testing.T) {
	// day1 CTR = 0.1, day2 CTR = 0. The period CTR must be 10/1000,
	// not the mean of the daily ratios (0.05).
	days := []string{"2026-03-01", "2026-03-02"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeyClicks, dec("10"))
	store.Set("2026-03-01", metric.KeyImpressions, dec("100"))
	store.Set("2026-03-01", metric.KeyCTR, dec("0.1"))
	store.Set("2026-03-02", metric.KeyClicks, dec("0"))
	store.Set("2026-03-02", metric.KeyImpressions, dec("900"))
	store.Set("2026-03-02", metric.KeyCTR, dec("0"))

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{
		metric.KeyClicks, metric.KeyImpressions, metric.KeyCTR,
	})

	require.True(t, dec("0.01").Equal(totals[metric.KeyCTR]), "got %s", totals[metric.KeyCTR])
	require.True(t, dec("10").Equal(totals[metric.KeyClicks]))
	require.True(t, dec("1000").Equal(totals[metric.KeyImpressions]))
}

func TestAggregateRange_CPMScaling(t *testing.T) {
	days := []string{"2026-03-01", "2026-03-02"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeySpend, dec("30"))
	store.Set("2026-03-01", metric.KeyImpressions, dec("4000"))
	store.Set("2026-03-02", metric.KeySpend, dec("20"))
	store.Set("2026-03-02", metric.KeyImpressions, dec("6000"))

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{metric.KeyCPM})

	// (50 / 10000) * 1000 = 5
	require.True(t, dec("5").Equal(totals[metric.KeyCPM]), "got %s", totals[metric.KeyCPM])
}

func TestAggregateRange_ZeroDenominator(t *testing.T) {
	days := []string{"2026-03-01"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeySpend, dec("50"))
	// no impressions recorded at all

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{metric.KeyCPM, metric.KeyCTR})

	require.True(t, totals[metric.KeyCPM].IsZero())
	require.True(t, totals[metric.KeyCTR].IsZero())
}

func TestAggregateRange_RatioOverwritesNaiveSum(t *testing.T) {
	// The provider reports a daily cpc value; its naive sum across days
	// is meaningless and must be replaced by Σspend/Σclicks.
	days := []string{"2026-03-01", "2026-03-02"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeySpend, dec("10"))
	store.Set("2026-03-01", metric.KeyClicks, dec("10"))
	store.Set("2026-03-01", metric.KeyCPC, dec("1"))
	store.Set("2026-03-02", metric.KeySpend, dec("30"))
	store.Set("2026-03-02", metric.KeyClicks, dec("10"))
	store.Set("2026-03-02", metric.KeyCPC, dec("3"))

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{metric.KeyCPC})

	// 40 / 20 = 2, not the summed daily values (4).
	require.True(t, dec("2").Equal(totals[metric.KeyCPC]), "got %s", totals[metric.KeyCPC])
}

func TestAggregateRange_UnknownKeyStillSums(t *testing.T) {
	days := []string{"2026-03-01"}
	store := testStore(days)
	store.Set("2026-03-01", "custom_thing", dec("7"))

	agg := NewAggregator(metric.MetaFields())
	totals := agg.AggregateRange(store, days, []metric.Key{"custom_thing"})

	require.True(t, dec("7").Equal(totals["custom_thing"]))
}

func TestDailySeries(t *testing.T) {
	days := []string{"2026-03-01", "2026-03-02"}
	store := testStore(days)
	store.Set("2026-03-01", metric.KeySpend, dec("3"))

	agg := NewAggregator(metric.MetaFields())
	series := agg.DailySeries(store, days, []metric.Key{metric.KeySpend})

	require.Len(t, series, 2)
	require.Equal(t, "2026-03-01", series[0].Day)
	require.True(t, dec("3").Equal(series[0].Values[metric.KeySpend]))
	require.True(t, series[1].Values[metric.KeySpend].IsZero())
}
