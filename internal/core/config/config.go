package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/powerbrief/scorecard/internal/core/metric"
)

// Config represents the top-level application config plus loaded custom
// metric definitions.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Provider ProviderConfig `koanf:"provider"`
	Cache    CacheConfig    `koanf:"cache"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Warm     WarmConfig     `koanf:"warm"`
	Brands   []BrandConfig  `koanf:"brands"`

	// MetricLoading is populated by Load after parsing definition files.
	MetricLoading MetricLoadingConfig `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// ProviderConfig configures the Meta Graph API client.
type ProviderConfig struct {
	BaseURL    string `koanf:"base_url"`
	APIVersion string `koanf:"api_version"`
	Level      string `koanf:"level"`
	Limit      int    `koanf:"limit"`
}

type CacheConfig struct {
	FreshnessHorizonDays int `koanf:"freshness_horizon_days"`
}

type MetricsConfig struct {
	ConfigDir          string `koanf:"config_dir"`
	RequireDefinitions bool   `koanf:"require_definitions"`
}

// WarmConfig configures the background cache-warming scheduler.
type WarmConfig struct {
	Enabled      bool               `koanf:"enabled"`
	Interval     string             `koanf:"interval"` // parsed and validated on startup
	LookbackDays int                `koanf:"lookback_days"`
	Targets      []WarmTargetConfig `koanf:"targets"`
}

type WarmTargetConfig struct {
	BrandID string   `koanf:"brand_id"`
	Metrics []string `koanf:"metrics"`
}

// BrandConfig holds one brand's connected ad account credentials.
type BrandConfig struct {
	ID          string `koanf:"id"`
	AccountID   string `koanf:"account_id"`
	AccessToken string `koanf:"access_token"`
	Level       string `koanf:"level"`
}

type MetricLoadingConfig struct {
	ConfigDir   string
	Definitions []metric.CustomMetric
}

func (c WarmConfig) EffectiveInterval() string {
	if c.Interval != "" {
		return c.Interval
	}
	return "1h"
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if strings.TrimSpace(c.Provider.APIVersion) == "" {
		return fmt.Errorf("provider.api_version is required")
	}
	if c.Provider.Limit <= 0 {
		return fmt.Errorf("provider.limit must be > 0")
	}

	if c.Cache.FreshnessHorizonDays <= 0 {
		return fmt.Errorf("cache.freshness_horizon_days must be > 0")
	}

	if c.Warm.Enabled {
		interval, err := time.ParseDuration(c.Warm.EffectiveInterval())
		if err != nil {
			return fmt.Errorf("invalid warm.interval %q: %w", c.Warm.EffectiveInterval(), err)
		}
		if interval <= 0 {
			return fmt.Errorf("warm.interval must be > 0")
		}
		if c.Warm.LookbackDays <= 0 {
			return fmt.Errorf("warm.lookback_days must be > 0")
		}
		for _, target := range c.Warm.Targets {
			if strings.TrimSpace(target.BrandID) == "" {
				return fmt.Errorf("warm.targets entries require a brand_id")
			}
			if len(target.Metrics) == 0 {
				return fmt.Errorf("warm target %q requires at least one metric", target.BrandID)
			}
		}
	}

	seen := make(map[string]bool, len(c.Brands))
	for _, brand := range c.Brands {
		if strings.TrimSpace(brand.ID) == "" {
			return fmt.Errorf("brands entries require an id")
		}
		if seen[brand.ID] {
			return fmt.Errorf("duplicate brand id %q", brand.ID)
		}
		seen[brand.ID] = true
		if strings.TrimSpace(brand.AccountID) == "" {
			return fmt.Errorf("brand %q requires an account_id", brand.ID)
		}
		if strings.TrimSpace(brand.AccessToken) == "" {
			return fmt.Errorf("brand %q requires an access_token", brand.ID)
		}
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and
// validates custom metric definitions.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                  8080,
		"server.host":                  "0.0.0.0",
		"server.mode":                  "release",
		"database.type":                "postgres",
		"database.dsn":                 "",
		"database.max_open_conns":      25,
		"database.max_idle_conns":      25,
		"database.auto_migrate":        true,
		"provider.base_url":            "https://graph.facebook.com",
		"provider.api_version":         "v21.0",
		"provider.level":               "account",
		"provider.limit":               500,
		"cache.freshness_horizon_days": 7,
		"metrics.config_dir":           "./config/metrics",
		"metrics.require_definitions":  false,
		"warm.enabled":                 false,
		"warm.interval":                "1h",
		"warm.lookback_days":           30,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("SCORECARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SCORECARD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := metric.NewFileSystemFormulaRepository(cfg.Metrics.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric definitions: %w", err)
	}
	definitions := repo.All()
	if cfg.Metrics.RequireDefinitions && len(definitions) == 0 {
		return nil, fmt.Errorf("no metric definitions found in %q", cfg.Metrics.ConfigDir)
	}

	cfg.MetricLoading = MetricLoadingConfig{
		ConfigDir:   cfg.Metrics.ConfigDir,
		Definitions: definitions,
	}

	return &cfg, nil
}
