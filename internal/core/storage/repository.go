package storage

import (
	"context"
	"time"

	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
)

// CacheRecord is one durable per-day metric value, scoped to a brand
// and a config hash (filters + requested key set).
type CacheRecord struct {
	BrandID    string
	ConfigHash string
	Day        string // YYYY-MM-DD, UTC
	MetricKey  metric.Key
	Value      decimal.Decimal
	FetchedAt  time.Time
}

// DayValues maps day → metric key → cached value.
type DayValues map[string]map[metric.Key]decimal.Decimal

// DayCacheStore defines the interface for the per-day insight cache.
//
// Reads are best-effort: the resolver treats read failures as cache
// misses. Writes are idempotent upserts on the natural composite key
// (brand_id, config_hash, day, metric_key), so concurrent duplicate
// fetches are wasteful but never unsafe.
type DayCacheStore interface {
	// ReadDays returns the cached values for the given days and keys.
	// Days with no rows are simply absent from the result.
	ReadDays(ctx context.Context, brandID, configHash string, days []string, keys []metric.Key) (DayValues, error)

	// UpsertRecords writes records with conflict-replace semantics.
	UpsertRecords(ctx context.Context, records []CacheRecord) error
}
