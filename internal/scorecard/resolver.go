package scorecard

import (
	"context"
	"log/slog"
	"time"

	"github.com/powerbrief/scorecard/internal/core/insights"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/core/storage"
	"github.com/shopspring/decimal"
)

// DefaultFreshnessHorizonDays is the rolling window before today within
// which cached provider data is never trusted: ad platforms keep
// restating recent days (attribution windows, late conversions).
const DefaultFreshnessHorizonDays = 7

// Resolution is the outcome of partitioning a date range into cached
// and to-fetch days.
type Resolution struct {
	// Days is every day in the requested range, ascending.
	Days []string

	// Store has one entry per day, pre-populated with cached values for
	// fully covered days.
	Store insights.DailyStore

	// DatesToFetch are the days that still need provider data,
	// ascending, deduplicated.
	DatesToFetch []string

	// CachedDays counts days served entirely from cache.
	CachedDays int
}

// Resolver decides which days of a request can be served from the day
// cache and which must be fetched fresh.
type Resolver struct {
	cache       storage.DayCacheStore
	horizonDays int
	nowFn       func() time.Time
}

// NewResolver creates a resolver over the given cache store.
// horizonDays <= 0 falls back to the default.
func NewResolver(cache storage.DayCacheStore, horizonDays int) *Resolver {
	if horizonDays <= 0 {
		horizonDays = DefaultFreshnessHorizonDays
	}
	return &Resolver{
		cache:       cache,
		horizonDays: horizonDays,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Resolve enumerates every day in [start, end], initializes the daily
// store eagerly, and partitions the days:
//
//   - Days on or after the freshness horizon are always fetched,
//     regardless of cache contents.
//   - Older days are served from cache only when every requested key
//     has a row; partial coverage is a full miss for that day.
//   - A cache read failure is logged and treated as a miss for every
//     older day — resolution fails open to fetching, never errors.
func (r *Resolver) Resolve(
	ctx context.Context,
	brandID, configHash string,
	start, end time.Time,
	keys []metric.Key,
) Resolution {
	days := insights.DaysInRange(start, end)
	res := Resolution{
		Days:  days,
		Store: insights.NewDailyStore(days),
	}

	horizon := insights.DayOf(r.nowFn()).AddDate(0, 0, -r.horizonDays)

	var cacheableDays []string
	fresh := make(map[string]bool, len(days))
	for _, day := range days {
		d, err := insights.ParseDay(day)
		if err != nil || !d.Before(horizon) {
			fresh[day] = true
			continue
		}
		cacheableDays = append(cacheableDays, day)
	}

	cached := storage.DayValues{}
	if len(cacheableDays) > 0 {
		var err error
		cached, err = r.cache.ReadDays(ctx, brandID, configHash, cacheableDays, keys)
		if err != nil {
			slog.Error("[Resolver] Day cache read failed, treating as miss",
				"brand_id", brandID,
				"days", len(cacheableDays),
				"error", err)
			cached = storage.DayValues{}
		}
	}

	for _, day := range days {
		if fresh[day] {
			res.DatesToFetch = append(res.DatesToFetch, day)
			continue
		}
		values := cached[day]
		if !coversAllKeys(values, keys) {
			res.DatesToFetch = append(res.DatesToFetch, day)
			continue
		}
		for key, value := range values {
			res.Store.Set(day, key, value)
		}
		res.CachedDays++
	}

	return res
}

// coversAllKeys reports whether a cached day has a value for every
// requested key. There is no per-key fetch granularity within a day:
// one missing key refetches the whole day.
func coversAllKeys(values map[metric.Key]decimal.Decimal, keys []metric.Key) bool {
	if values == nil {
		return false
	}
	for _, key := range keys {
		if _, ok := values[key]; !ok {
			return false
		}
	}
	return true
}
