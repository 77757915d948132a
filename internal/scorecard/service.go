package scorecard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/powerbrief/scorecard/internal/core/insights"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/core/storage"
	"github.com/powerbrief/scorecard/internal/provider/meta"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownBrand marks a request for a brand with no configured
// credentials and no inline override.
var ErrUnknownBrand = errors.New("unknown brand")

// InsightsFetcher is the provider boundary the service fetches through.
type InsightsFetcher interface {
	FetchDaily(ctx context.Context, req meta.InsightsRequest) ([]meta.DailyRecord, error)
}

// BrandCredentials identifies one brand's connected ad account.
type BrandCredentials struct {
	AccountID   string
	AccessToken string
	Level       string
}

// QueryParams describes one scorecard computation.
type QueryParams struct {
	BrandID     string
	Start       time.Time
	End         time.Time
	Keys        []metric.Key
	Filters     insights.Filters
	Granularity string

	// Credentials overrides the brand's configured credentials when
	// non-nil (refresh requests pass the connected account through).
	Credentials *BrandCredentials

	// InlineFormulas are evaluated alongside the configured custom
	// metrics.
	InlineFormulas []metric.CustomMetric
}

// Result is the computed scorecard for one query.
type Result struct {
	RunID       string
	ConfigHash  string
	Days        []string
	CachedDays  int
	FetchedDays int

	Totals map[metric.Key]decimal.Decimal
	Custom map[string]decimal.Decimal
	Daily  []insights.DayValues
}

// Service orchestrates one scorecard computation: resolve the date
// range against the day cache, fetch the missing days from the
// provider in a single call, merge, write back, aggregate, and
// evaluate custom formulas over the period totals.
type Service struct {
	resolver   *Resolver
	cache      storage.DayCacheStore
	fetcher    InsightsFetcher
	fields     metric.FieldTable
	aggregator *insights.Aggregator
	formulas   metric.FormulaRepository
	brands     map[string]BrandCredentials

	// fetchGroup coalesces concurrent identical provider fetches.
	// The upsert is idempotent either way; this just avoids paying for
	// the same insights call twice.
	fetchGroup singleflight.Group

	nowFn func() time.Time
}

// NewService creates a scorecard service.
func NewService(
	resolver *Resolver,
	cache storage.DayCacheStore,
	fetcher InsightsFetcher,
	fields metric.FieldTable,
	formulas metric.FormulaRepository,
	brands map[string]BrandCredentials,
) *Service {
	if resolver == nil {
		panic("scorecard: resolver must not be nil")
	}
	if cache == nil {
		panic("scorecard: cache must not be nil")
	}
	if fetcher == nil {
		panic("scorecard: fetcher must not be nil")
	}
	if brands == nil {
		brands = map[string]BrandCredentials{}
	}
	return &Service{
		resolver:   resolver,
		cache:      cache,
		fetcher:    fetcher,
		fields:     fields,
		aggregator: insights.NewAggregator(fields),
		formulas:   formulas,
		brands:     brands,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Query runs the full cache-aware aggregation flow. Only provider
// failures (auth or request) propagate as errors; cache failures
// degrade to fetching or to dropped writes.
func (s *Service) Query(ctx context.Context, p QueryParams) (*Result, error) {
	creds, err := s.credentials(p)
	if err != nil {
		return nil, err
	}

	// Ratio metrics aggregate from their components, so the components
	// are resolved, fetched, and cached alongside the requested keys.
	resolvedKeys := s.expandKeys(p.Keys)
	configHash := insights.ConfigHash(p.Filters, p.Keys)

	resolution := s.resolver.Resolve(ctx, p.BrandID, configHash, p.Start, p.End, resolvedKeys)

	fetchedDays := len(resolution.DatesToFetch)
	if fetchedDays > 0 {
		if err := s.fetchAndMerge(ctx, p, creds, configHash, resolvedKeys, resolution); err != nil {
			return nil, err
		}
	}

	totals := s.aggregator.AggregateRange(resolution.Store, resolution.Days, resolvedKeys)

	result := &Result{
		RunID:       uuid.NewString(),
		ConfigHash:  configHash,
		Days:        resolution.Days,
		CachedDays:  resolution.CachedDays,
		FetchedDays: fetchedDays,
		Totals:      make(map[metric.Key]decimal.Decimal, len(p.Keys)),
		Custom:      s.evaluateFormulas(totals, p.InlineFormulas),
	}
	for _, key := range p.Keys {
		result.Totals[key] = totals[key]
	}
	if p.Granularity == "daily" {
		result.Daily = s.aggregator.DailySeries(resolution.Store, resolution.Days, p.Keys)
	}

	slog.Info("[Scorecard] Query complete",
		"run_id", result.RunID,
		"brand_id", p.BrandID,
		"days", len(resolution.Days),
		"cached_days", result.CachedDays,
		"fetched_days", result.FetchedDays)
	return result, nil
}

// fetchAndMerge makes one provider call spanning the missing days,
// distributes the returned records into the daily store, and writes
// the resolved values back to the day cache.
func (s *Service) fetchAndMerge(
	ctx context.Context,
	p QueryParams,
	creds BrandCredentials,
	configHash string,
	keys []metric.Key,
	resolution Resolution,
) error {
	since := resolution.DatesToFetch[0]
	until := resolution.DatesToFetch[len(resolution.DatesToFetch)-1]

	records, err := s.fetchDaily(ctx, meta.InsightsRequest{
		AccountID:   creds.AccountID,
		AccessToken: creds.AccessToken,
		Fields:      s.fields.ProviderFields(keys),
		Level:       creds.Level,
		Since:       since,
		Until:       until,
		Filters:     p.Filters,
	}, p.BrandID, configHash)
	if err != nil {
		return err
	}

	needed := make(map[string]bool, len(resolution.DatesToFetch))
	for _, day := range resolution.DatesToFetch {
		needed[day] = true
	}

	// At level=campaign/adset/ad the provider returns one record per
	// entity per day, so values accumulate per (day, key). Fetched days
	// start empty in the store (cached days are filtered out above),
	// which makes the running Add safe.
	touched := make(map[string]bool, len(resolution.DatesToFetch))
	for _, rec := range records {
		if !needed[rec.Date] {
			// The provider call spans [since, until]; days inside that
			// window already served from cache keep their cached values.
			continue
		}
		touched[rec.Date] = true
		for _, key := range keys {
			desc, ok := s.fields.Descriptor(key)
			if !ok {
				continue
			}
			value := metric.ExtractValue(desc, rec.Fields)
			resolution.Store.Set(rec.Date, key, resolution.Store.Get(rec.Date, key).Add(value))
		}
	}

	// One cache row per (day, key), staged after every record for the
	// day has been folded in.
	fetchedAt := s.nowFn()
	var upserts []storage.CacheRecord
	for _, day := range resolution.DatesToFetch {
		if !touched[day] {
			continue
		}
		for _, key := range keys {
			if _, ok := s.fields.Descriptor(key); !ok {
				continue
			}
			upserts = append(upserts, storage.CacheRecord{
				BrandID:    p.BrandID,
				ConfigHash: configHash,
				Day:        day,
				MetricKey:  key,
				Value:      resolution.Store.Get(day, key),
				FetchedAt:  fetchedAt,
			})
		}
	}

	if len(upserts) > 0 {
		if err := s.cache.UpsertRecords(ctx, upserts); err != nil {
			// Cache write failures are never surfaced: the response is
			// complete either way, only the next request pays again.
			slog.Error("[Scorecard] Day cache write failed",
				"brand_id", p.BrandID,
				"records", len(upserts),
				"error", err)
		}
	}

	return nil
}

// fetchDaily coalesces identical concurrent fetches through singleflight.
func (s *Service) fetchDaily(ctx context.Context, req meta.InsightsRequest, brandID, configHash string) ([]meta.DailyRecord, error) {
	key := strings.Join([]string{brandID, configHash, req.Since, req.Until}, "|")
	v, err, _ := s.fetchGroup.Do(key, func() (interface{}, error) {
		return s.fetcher.FetchDaily(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.([]meta.DailyRecord), nil
}

func (s *Service) credentials(p QueryParams) (BrandCredentials, error) {
	if p.Credentials != nil && p.Credentials.AccessToken != "" {
		return *p.Credentials, nil
	}
	creds, ok := s.brands[p.BrandID]
	if !ok {
		return BrandCredentials{}, fmt.Errorf("%w: %s", ErrUnknownBrand, p.BrandID)
	}
	return creds, nil
}

// expandKeys returns the requested keys plus every ratio component they
// depend on, deduplicated, request order first.
func (s *Service) expandKeys(keys []metric.Key) []metric.Key {
	seen := make(map[metric.Key]struct{}, len(keys))
	var out []metric.Key

	var add func(k metric.Key)
	add = func(k metric.Key) {
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
		if desc, ok := s.fields.Descriptor(k); ok && desc.IsRatio() {
			add(desc.RatioComponents[0])
			add(desc.RatioComponents[1])
		}
	}

	for _, k := range keys {
		add(k)
	}
	return out
}

// evaluateFormulas computes configured plus inline custom metrics over
// the aggregated totals bag. Inline definitions shadow configured ones
// with the same name.
func (s *Service) evaluateFormulas(totals map[metric.Key]decimal.Decimal, inline []metric.CustomMetric) map[string]decimal.Decimal {
	custom := make(map[string]decimal.Decimal)
	if s.formulas != nil {
		for _, cm := range s.formulas.All() {
			custom[cm.Name] = cm.Formula.Evaluate(totals)
		}
	}
	for _, cm := range inline {
		custom[cm.Name] = cm.Formula.Evaluate(totals)
	}
	if len(custom) == 0 {
		return nil
	}
	return custom
}
