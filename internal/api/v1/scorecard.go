package v1

import (
	"fmt"
	"time"

	"github.com/powerbrief/scorecard/internal/core/insights"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/shopspring/decimal"
)

// Granularities accepted by the metrics query.
const (
	GranularityTotal = "total"
	GranularityDaily = "daily"
)

// FiltersPayload narrows which campaigns/ad sets/ads contribute to the
// numbers. Name matching is substring-based on the provider side.
type FiltersPayload struct {
	Campaigns []string `json:"campaigns,omitempty" form:"campaigns"`
	AdSets    []string `json:"adsets,omitempty" form:"adsets"`
	Ads       []string `json:"ads,omitempty" form:"ads"`
}

// ToFilters converts the payload to the core filter type.
func (f FiltersPayload) ToFilters() insights.Filters {
	return insights.Filters{
		CampaignNames: f.Campaigns,
		AdSetNames:    f.AdSets,
		AdNames:       f.Ads,
	}
}

// FormulaPayload is an inline custom metric submitted with a refresh:
// a name plus the ordered token list authored in the UI builder.
type FormulaPayload struct {
	Name   string         `json:"name"`
	Tokens metric.Formula `json:"tokens"`
}

// RefreshRequest asks for a scorecard refresh over a date range.
// AccountID/AccessToken override the brand's configured credentials
// when set (the UI passes the connected account's token through).
type RefreshRequest struct {
	Start       string           `json:"start" binding:"required"`
	End         string           `json:"end" binding:"required"`
	Metrics     []string         `json:"metrics" binding:"required"`
	Filters     FiltersPayload   `json:"filters"`
	Granularity string           `json:"granularity"`
	AccountID   string           `json:"account_id"`
	AccessToken string           `json:"access_token"`
	Formulas    []FormulaPayload `json:"formulas"`
}

// Validate checks the request shape. Dates are ISO days (YYYY-MM-DD).
func (r *RefreshRequest) Validate() (start, end time.Time, err error) {
	if len(r.Metrics) == 0 {
		return start, end, fmt.Errorf("metrics is required")
	}
	for _, m := range r.Metrics {
		if m == "" {
			return start, end, fmt.Errorf("metrics must not contain empty keys")
		}
	}

	start, err = insights.ParseDay(r.Start)
	if err != nil {
		return start, end, fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", r.Start)
	}
	end, err = insights.ParseDay(r.End)
	if err != nil {
		return start, end, fmt.Errorf("invalid end date %q (want YYYY-MM-DD)", r.End)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s", r.End, r.Start)
	}

	if r.Granularity != "" && r.Granularity != GranularityTotal && r.Granularity != GranularityDaily {
		return start, end, fmt.Errorf("invalid granularity %q (want total or daily)", r.Granularity)
	}

	for _, f := range r.Formulas {
		if f.Name == "" {
			return start, end, fmt.Errorf("inline formula is missing a name")
		}
		if err := f.Tokens.Validate(); err != nil {
			return start, end, fmt.Errorf("inline formula %q: %w", f.Name, err)
		}
	}

	return start, end, nil
}

// MetricKeys converts the requested metric names to typed keys.
func (r *RefreshRequest) MetricKeys() []metric.Key {
	keys := make([]metric.Key, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		keys = append(keys, metric.Key(m))
	}
	return keys
}

// ScorecardResponse is the result of a metrics query or refresh.
type ScorecardResponse struct {
	RunID       string `json:"run_id"`
	BrandID     string `json:"brand_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ConfigHash  string `json:"config_hash"`
	CachedDays  int    `json:"cached_days"`
	FetchedDays int    `json:"fetched_days"`

	Totals        map[metric.Key]decimal.Decimal `json:"totals"`
	CustomMetrics map[string]decimal.Decimal     `json:"custom_metrics,omitempty"`
	Daily         []insights.DayValues           `json:"daily,omitempty"`
}
