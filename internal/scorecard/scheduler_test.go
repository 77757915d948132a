package scorecard

import (
	"context"
	"testing"
	"time"

	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/provider/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_WarmAllQueriesEachTarget(t *testing.T) {
	fetcher := &fakeFetcher{records: []meta.DailyRecord{
		dailyRecord("2026-03-19", "10", "1000"),
	}}
	svc := newTestService(t, &fakeCache{}, fetcher)

	sched := NewScheduler(time.Hour, 30, svc, []WarmTarget{
		{BrandID: "brand-1", Keys: []metric.Key{metric.KeySpend}},
		{BrandID: "nobody", Keys: []metric.Key{metric.KeySpend}},
	})
	sched.warmAll(context.Background())

	// brand-1 warmed; the unknown brand failed without aborting the pass.
	require.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "2026-02-18", fetcher.lastReq.Since)
	assert.Equal(t, "2026-03-20", fetcher.lastReq.Until)
}

func TestScheduler_StartIdleWithoutTargets(t *testing.T) {
	svc := newTestService(t, &fakeCache{}, &fakeFetcher{})
	sched := NewScheduler(time.Hour, 30, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestNewScheduler_DefaultLookback(t *testing.T) {
	svc := newTestService(t, &fakeCache{}, &fakeFetcher{})
	sched := NewScheduler(time.Hour, 0, svc, nil)
	assert.Equal(t, 30, sched.lookbackDays)
}
