package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/core/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDayCacheAdapter_ReadDays(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta(queryReadDayCache)).
		WithArgs("brand-1", "hash-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"day", "metric_key", "value"}).
			AddRow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "spend", "12.50").
			AddRow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "impressions", "4000").
			AddRow(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "spend", "7.25"))

	values, err := adapter.ReadDays(context.Background(), "brand-1", "hash-1",
		[]string{"2026-03-01", "2026-03-02"},
		[]metric.Key{metric.KeySpend, metric.KeyImpressions})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, values, 2)
	require.True(t, decimal.RequireFromString("12.50").Equal(values["2026-03-01"][metric.KeySpend]))
	require.True(t, decimal.RequireFromString("4000").Equal(values["2026-03-01"][metric.KeyImpressions]))
	require.Len(t, values["2026-03-02"], 1)
}

func TestDayCacheAdapter_ReadDaysEmptyInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)

	// No query is issued for empty days or keys.
	values, err := adapter.ReadDays(context.Background(), "brand-1", "hash-1", nil, []metric.Key{metric.KeySpend})
	require.NoError(t, err)
	require.Empty(t, values)

	values, err = adapter.ReadDays(context.Background(), "brand-1", "hash-1", []string{"2026-03-01"}, nil)
	require.NoError(t, err)
	require.Empty(t, values)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayCacheAdapter_ReadDaysQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta(queryReadDayCache)).
		WillReturnError(errors.New("connection reset"))

	_, err = adapter.ReadDays(context.Background(), "brand-1", "hash-1",
		[]string{"2026-03-01"}, []metric.Key{metric.KeySpend})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayCacheAdapter_UpsertRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)
	fetchedAt := time.Now().UTC().Truncate(time.Second)

	records := []storage.CacheRecord{
		{
			BrandID:    "brand-1",
			ConfigHash: "hash-1",
			Day:        "2026-03-01",
			MetricKey:  metric.KeySpend,
			Value:      decimal.RequireFromString("12.50"),
			FetchedAt:  fetchedAt,
		},
		{
			BrandID:    "brand-1",
			ConfigHash: "hash-1",
			Day:        "2026-03-01",
			MetricKey:  metric.KeyImpressions,
			Value:      decimal.NewFromInt(4000),
			FetchedAt:  fetchedAt,
		},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertDayCache))
	for _, rec := range records {
		prep.ExpectExec().WithArgs(
			rec.BrandID,
			rec.ConfigHash,
			rec.Day,
			string(rec.MetricKey),
			rec.Value,
			rec.FetchedAt,
		).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, adapter.UpsertRecords(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayCacheAdapter_UpsertRecordsEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)
	require.NoError(t, adapter.UpsertRecords(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayCacheAdapter_UpsertRecordsRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewDayCacheAdapter(db)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertDayCache)).
		ExpectExec().
		WillReturnError(errors.New("value out of range"))
	mock.ExpectRollback()

	err = adapter.UpsertRecords(context.Background(), []storage.CacheRecord{
		{
			BrandID:    "brand-1",
			ConfigHash: "hash-1",
			Day:        "2026-03-01",
			MetricKey:  metric.KeySpend,
			Value:      decimal.NewFromInt(1),
			FetchedAt:  time.Now().UTC(),
		},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
