package scorecard

import (
	"context"
	"log/slog"
	"time"

	"github.com/powerbrief/scorecard/internal/core/metric"
)

// WarmTarget is one brand whose day cache the scheduler keeps warm.
type WarmTarget struct {
	BrandID string
	Keys    []metric.Key
}

// Scheduler periodically re-runs the scorecard flow for configured
// brands so the durable day cache stays populated for days outside the
// freshness window. It is stateless: each tick runs the same
// cache-aware query the API serves, and the cache policy decides what
// actually gets fetched.
type Scheduler struct {
	interval     time.Duration
	lookbackDays int
	service      *Service
	targets      []WarmTarget
}

// NewScheduler creates a cache-warming scheduler.
func NewScheduler(interval time.Duration, lookbackDays int, service *Service, targets []WarmTarget) *Scheduler {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Scheduler{
		interval:     interval,
		lookbackDays: lookbackDays,
		service:      service,
		targets:      targets,
	}
}

// Start begins periodic warming. Runs until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.targets) == 0 {
		slog.Info("[WarmScheduler] No warm targets configured, scheduler idle")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[WarmScheduler] Starting cache warm scheduler",
		"interval", s.interval,
		"lookback_days", s.lookbackDays,
		"targets", len(s.targets))

	// Initial pass so a fresh deployment doesn't wait a full interval.
	s.warmAll(ctx)

	for {
		select {
		case <-ticker.C:
			s.warmAll(ctx)
		case <-ctx.Done():
			slog.Info("[WarmScheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) warmAll(ctx context.Context) {
	now := s.service.nowFn()
	start := now.AddDate(0, 0, -s.lookbackDays)

	for _, target := range s.targets {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := s.service.Query(ctx, QueryParams{
			BrandID: target.BrandID,
			Start:   start,
			End:     now,
			Keys:    target.Keys,
		})
		if err != nil {
			slog.Error("[WarmScheduler] Warm query failed",
				"brand_id", target.BrandID,
				"error", err)
			continue
		}

		slog.Info("[WarmScheduler] Warmed brand",
			"brand_id", target.BrandID,
			"run_id", result.RunID,
			"cached_days", result.CachedDays,
			"fetched_days", result.FetchedDays)
	}
}
