package scorecard

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	v1 "github.com/powerbrief/scorecard/internal/api/v1"
	httperr "github.com/powerbrief/scorecard/internal/core/errors"
	"github.com/powerbrief/scorecard/internal/core/metric"
	"github.com/powerbrief/scorecard/internal/provider/meta"
)

const msgReconnectAccount = "Meta access token was rejected. Reconnect the Meta account for this brand and try again."

// RegisterRoutes registers the scorecard API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/scorecard/:brand_id/metrics", s.HandleQueryMetrics)
	r.POST("/v1/scorecard/:brand_id/refresh", s.HandleRefresh)
}

// HandleQueryMetrics handles GET /v1/scorecard/:brand_id/metrics
// Query parameters: start, end, metrics (comma-separated), granularity,
// campaigns, adsets, ads.
func (s *Service) HandleQueryMetrics(c *gin.Context) {
	brandID := c.Param("brand_id")

	var query struct {
		Start       string   `form:"start" binding:"required"`
		End         string   `form:"end" binding:"required"`
		Metrics     string   `form:"metrics" binding:"required"`
		Granularity string   `form:"granularity"`
		Campaigns   []string `form:"campaigns"`
		AdSets      []string `form:"adsets"`
		Ads         []string `form:"ads"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequest,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	req := v1.RefreshRequest{
		Start:       query.Start,
		End:         query.End,
		Metrics:     splitCSV(query.Metrics),
		Granularity: query.Granularity,
		Filters: v1.FiltersPayload{
			Campaigns: query.Campaigns,
			AdSets:    query.AdSets,
			Ads:       query.Ads,
		},
	}

	s.run(c, brandID, req)
}

// HandleRefresh handles POST /v1/scorecard/:brand_id/refresh
func (s *Service) HandleRefresh(c *gin.Context) {
	brandID := c.Param("brand_id")

	var req v1.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequest,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}

	s.run(c, brandID, req)
}

// run executes the shared query flow and writes the HTTP response.
func (s *Service) run(c *gin.Context, brandID string, req v1.RefreshRequest) {
	start, end, err := req.Validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequest,
			Message:   "Invalid scorecard request",
			Details:   err.Error(),
		})
		return
	}

	params := QueryParams{
		BrandID:     brandID,
		Start:       start,
		End:         end,
		Keys:        req.MetricKeys(),
		Filters:     req.Filters.ToFilters(),
		Granularity: req.Granularity,
	}
	if req.AccessToken != "" {
		params.Credentials = &BrandCredentials{
			AccountID:   req.AccountID,
			AccessToken: req.AccessToken,
		}
	}
	for _, f := range req.Formulas {
		params.InlineFormulas = append(params.InlineFormulas, metric.CustomMetric{
			Name:    f.Name,
			Formula: f.Tokens,
		})
	}

	result, err := s.Query(c.Request.Context(), params)
	if err != nil {
		writeQueryError(c, brandID, err)
		return
	}

	c.JSON(http.StatusOK, v1.ScorecardResponse{
		RunID:         result.RunID,
		BrandID:       brandID,
		Start:         req.Start,
		End:           req.End,
		ConfigHash:    result.ConfigHash,
		CachedDays:    result.CachedDays,
		FetchedDays:   result.FetchedDays,
		Totals:        result.Totals,
		CustomMetrics: result.Custom,
		Daily:         result.Daily,
	})
}

// writeQueryError maps service failures to HTTP responses. Auth
// failures get an actionable message distinct from generic provider
// failures, which pass the provider's status and payload through.
func writeQueryError(c *gin.Context, brandID string, err error) {
	if errors.Is(err, ErrUnknownBrand) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownBrandError,
			Message:   "No credentials configured for brand",
			Details:   brandID,
		})
		return
	}

	if errors.Is(err, meta.ErrAuth) {
		slog.Warn("Provider rejected access token", "brand_id", brandID, "error", err)
		c.JSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpProviderAuthError,
			Message:   msgReconnectAccount,
			Details:   err.Error(),
		})
		return
	}

	var apiErr *meta.APIError
	if errors.As(err, &apiErr) {
		slog.Error("Provider request failed",
			"brand_id", brandID,
			"status", apiErr.StatusCode,
			"code", apiErr.Code)
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpProviderError,
			Message:   "Ad provider request failed",
			Details: map[string]interface{}{
				"status_code": apiErr.StatusCode,
				"payload":     apiErr.Raw,
			},
		})
		return
	}

	slog.Error("Scorecard query failed", "brand_id", brandID, "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Failed to compute scorecard",
		Details:   err.Error(),
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
