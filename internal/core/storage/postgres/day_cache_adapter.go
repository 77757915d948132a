package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/core/storage"
	"github.com/shopspring/decimal"
)

const dayFormat = "2006-01-02"

const (
	queryReadDayCache = `
		SELECT day, metric_key, value
		FROM scorecard_day_cache
		WHERE brand_id = $1
		  AND config_hash = $2
		  AND day = ANY($3::date[])
		  AND metric_key = ANY($4)
	`

	queryUpsertDayCache = `
		INSERT INTO scorecard_day_cache (
			brand_id, config_hash, day, metric_key, value, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (brand_id, config_hash, day, metric_key)
		DO UPDATE SET
			value      = EXCLUDED.value,
			fetched_at = EXCLUDED.fetched_at
	`
)

// DayCacheAdapter implements storage.DayCacheStore using PostgreSQL.
type DayCacheAdapter struct {
	db *sql.DB
}

// NewDayCacheAdapter creates a new DayCacheAdapter sharing the given connection.
func NewDayCacheAdapter(db *sql.DB) *DayCacheAdapter {
	return &DayCacheAdapter{db: db}
}

// ReadDays fetches the cached values for the given days and keys in one
// query. Days with no rows are absent from the result; the caller
// decides what partial coverage means.
func (a *DayCacheAdapter) ReadDays(
	ctx context.Context,
	brandID, configHash string,
	days []string,
	keys []metric.Key,
) (storage.DayValues, error) {
	if len(days) == 0 || len(keys) == 0 {
		return storage.DayValues{}, nil
	}

	keyStrs := make([]string, 0, len(keys))
	for _, k := range keys {
		keyStrs = append(keyStrs, string(k))
	}

	rows, err := a.db.QueryContext(ctx, queryReadDayCache,
		brandID, configHash, pq.Array(days), pq.Array(keyStrs))
	if err != nil {
		return nil, fmt.Errorf("day cache read: %w", err)
	}
	defer rows.Close()

	values := storage.DayValues{}
	for rows.Next() {
		var (
			day      time.Time
			key      string
			valueStr string
		)
		if err := rows.Scan(&day, &key, &valueStr); err != nil {
			return nil, fmt.Errorf("day cache read: scan row: %w", err)
		}

		value, err := decimal.NewFromString(valueStr)
		if err != nil {
			return nil, fmt.Errorf("day cache read: parse value %q: %w", valueStr, err)
		}

		dayKey := day.UTC().Format(dayFormat)
		if _, ok := values[dayKey]; !ok {
			values[dayKey] = make(map[metric.Key]decimal.Decimal)
		}
		values[dayKey][metric.Key(key)] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("day cache read: iterate rows: %w", err)
	}

	return values, nil
}

// UpsertRecords writes all records in a single transaction with
// conflict-replace semantics on (brand_id, config_hash, day,
// metric_key). Re-running a fetch for an already-cached day overwrites
// rows with identical values, which keeps the write idempotent.
func (a *DayCacheAdapter) UpsertRecords(ctx context.Context, records []storage.CacheRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("day cache upsert: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, queryUpsertDayCache)
	if err != nil {
		return fmt.Errorf("day cache upsert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.BrandID,
			rec.ConfigHash,
			rec.Day,
			string(rec.MetricKey),
			rec.Value,
			rec.FetchedAt,
		); err != nil {
			return fmt.Errorf("day cache upsert: %s/%s: %w", rec.Day, rec.MetricKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("day cache upsert: commit: %w", err)
	}

	slog.Info("[DayCacheAdapter] Upserted records", "count", len(records))
	return nil
}
