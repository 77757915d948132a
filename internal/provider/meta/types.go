package meta

import (
	"errors"
	"fmt"

	"github.com/powerbrief/scorecard/internal/core/insights"
	"github.com/powerbrief/scorecard/internal/core/metric"
)

// ErrAuth marks an invalid, expired, or under-scoped access token.
// Handlers surface it with a "reconnect the Meta account" message
// instead of a generic failure.
var ErrAuth = errors.New("meta access token rejected")

// APIError is a non-auth provider failure: the insights call came back
// non-2xx. It is fatal for the whole request — there is no
// partial-success path at the fetch layer.
type APIError struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
	Raw        string // raw error payload, passed through for diagnosis
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta insights request failed (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// InsightsRequest describes one daily-granularity insights call.
type InsightsRequest struct {
	AccountID   string
	AccessToken string
	Fields      []string
	Level       string // account | campaign | adset | ad
	Since       string // YYYY-MM-DD
	Until       string // YYYY-MM-DD
	Filters     insights.Filters
	Limit       int
}

// DailyRecord is one returned daily record: date_start plus the raw
// field bag (flat numeric strings and/or action lists) the metric
// extractor resolves values from.
type DailyRecord struct {
	Date   string
	Fields metric.Record
}
