package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	corecfg "github.com/powerbrief/scorecard/internal/core/config"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/core/storage/postgres"
	"github.com/powerbrief/scorecard/internal/migrations"
	"github.com/powerbrief/scorecard/internal/provider/meta"
	"github.com/powerbrief/scorecard/internal/scorecard"
	"github.com/powerbrief/scorecard/internal/server"
)

func main() {
	configPath := flag.String("config", "scorecard.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"brands", len(cfg.Brands),
		"custom_metrics", len(cfg.MetricLoading.Definitions),
		"freshness_horizon_days", cfg.Cache.FreshnessHorizonDays)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := dbAdapter.ValidateSchema(); err != nil {
		slog.Error("Schema validation failed", "error", err)
		os.Exit(1)
	}

	// 3. Load custom metric definitions
	formulaRepo, err := metric.NewFileSystemFormulaRepository(cfg.MetricLoading.ConfigDir)
	if err != nil {
		slog.Error("Failed to load custom metric definitions", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Provider Client (Meta Graph API)
	fetcher := meta.NewClient(
		meta.WithBaseURL(cfg.Provider.BaseURL),
		meta.WithAPIVersion(cfg.Provider.APIVersion),
	)

	// 5. Initialize Scorecard Service
	dayCache := postgres.NewDayCacheAdapter(dbAdapter.DB())
	resolver := scorecard.NewResolver(dayCache, cfg.Cache.FreshnessHorizonDays)

	brands := make(map[string]scorecard.BrandCredentials, len(cfg.Brands))
	for _, b := range cfg.Brands {
		brands[b.ID] = scorecard.BrandCredentials{
			AccountID:   b.AccountID,
			AccessToken: b.AccessToken,
			Level:       b.Level,
		}
	}

	svc := scorecard.NewService(resolver, dayCache, fetcher, metric.MetaFields(), formulaRepo, brands)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	svc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache warm scheduler runs in background if enabled.
	if cfg.Warm.Enabled {
		interval, err := time.ParseDuration(cfg.Warm.EffectiveInterval())
		if err != nil {
			slog.Error("Invalid warm interval", "value", cfg.Warm.EffectiveInterval(), "error", err)
			os.Exit(1)
		}

		targets := make([]scorecard.WarmTarget, 0, len(cfg.Warm.Targets))
		for _, t := range cfg.Warm.Targets {
			keys := make([]metric.Key, 0, len(t.Metrics))
			for _, m := range t.Metrics {
				keys = append(keys, metric.Key(m))
			}
			targets = append(targets, scorecard.WarmTarget{BrandID: t.BrandID, Keys: keys})
		}

		sched := scorecard.NewScheduler(interval, cfg.Warm.LookbackDays, svc, targets)
		go func() {
			if err := sched.Start(ctx); err != nil {
				slog.Error("Warm scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Cache warm scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
