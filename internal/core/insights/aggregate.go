package insights

import (
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// Aggregator derives period totals from a populated DailyStore.
// The field table is injected so tests can substitute fixtures.
type Aggregator struct {
	fields metric.FieldTable
}

// NewAggregator creates an aggregator over the given field table.
func NewAggregator(fields metric.FieldTable) *Aggregator {
	return &Aggregator{fields: fields}
}

// AggregateRange sums every requested key across every day in the
// range, then overwrites ratio metrics with values recomputed from
// their summed components: Σnumerator/Σdenominator, not the mean of
// daily ratios. CTR over 30 days is totalClicks/totalImpressions.
// A zero summed denominator yields zero. Missing days and missing keys
// contribute zero.
//
// The recomputation pass runs strictly after the sum pass completes:
// component sums are only correct once every day has been visited.
func (a *Aggregator) AggregateRange(store DailyStore, days []string, keys []metric.Key) map[metric.Key]decimal.Decimal {
	totals := make(map[metric.Key]decimal.Decimal, len(keys))
	numSums := make(map[metric.Key]decimal.Decimal)
	denSums := make(map[metric.Key]decimal.Decimal)

	for _, key := range keys {
		total := decimal.Zero
		numSum := decimal.Zero
		denSum := decimal.Zero

		desc, _ := a.fields.Descriptor(key)
		for _, day := range days {
			total = total.Add(store.Get(day, key))
			if desc.IsRatio() {
				numSum = numSum.Add(store.Get(day, desc.RatioComponents[0]))
				denSum = denSum.Add(store.Get(day, desc.RatioComponents[1]))
			}
		}

		totals[key] = total
		if desc.IsRatio() {
			numSums[key] = numSum
			denSums[key] = denSum
		}
	}

	// Ratio recomputation, after all days are summed.
	for _, key := range keys {
		desc, ok := a.fields.Descriptor(key)
		if !ok || !desc.IsRatio() {
			continue
		}
		den := denSums[key]
		if !den.IsPositive() {
			totals[key] = decimal.Zero
			continue
		}
		value := numSums[key].Div(den)
		if desc.PerMille {
			value = value.Mul(thousand)
		}
		totals[key] = value
	}

	return totals
}

// DailySeries renders the per-day values for the requested keys in day
// order. Ratio metrics keep their provider-reported daily value here;
// only period totals are recomputed from components.
func (a *Aggregator) DailySeries(store DailyStore, days []string, keys []metric.Key) []DayValues {
	series := make([]DayValues, 0, len(days))
	for _, day := range days {
		values := make(map[metric.Key]decimal.Decimal, len(keys))
		for _, key := range keys {
			values[key] = store.Get(day, key)
		}
		series = append(series, DayValues{Day: day, Values: values})
	}
	return series
}

// DayValues is one day's resolved values in a daily series.
type DayValues struct {
	Day    string                         `json:"date"`
	Values map[metric.Key]decimal.Decimal `json:"values"`
}
