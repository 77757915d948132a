package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/powerbrief/scorecard/internal/core/insights"
	"github.com/powerbrief/scorecard/internal/core/metric"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	defaultLevel      = "account"
	defaultLimit      = 500

	// maxPages bounds paging.next follow-up; a daily-granularity query
	// over any sane date range fits well within this.
	maxPages = 25
)

// OAuth error codes that mean the token itself is the problem.
const (
	errCodeInvalidToken = 190
	errCodeSessionBad   = 102
)

// Client calls the Meta Graph insights API. Base URL, version, and the
// HTTP client are injectable for tests.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph API base URL (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIVersion overrides the Graph API version segment.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an insights client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiVersion: defaultAPIVersion,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type insightsResponse struct {
	Data   []metric.Record `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type errorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// FetchDaily runs one insights query with time_increment=1 over
// [Since, Until] and returns every daily record, following pagination.
// A non-2xx response is fatal: auth failures come back wrapped in
// ErrAuth, everything else as *APIError with the raw payload attached.
func (c *Client) FetchDaily(ctx context.Context, req InsightsRequest) ([]DailyRecord, error) {
	endpoint, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var records []DailyRecord
	next := endpoint
	for page := 0; next != "" && page < maxPages; page++ {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}

		var resp insightsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("meta insights: decode response: %w", err)
		}

		for _, rec := range resp.Data {
			date, _ := rec["date_start"].(string)
			if date == "" {
				// A record without a date cannot be placed in the
				// daily store; skip rather than fail the request.
				slog.Warn("[MetaClient] Dropping record without date_start")
				continue
			}
			records = append(records, DailyRecord{Date: date, Fields: rec})
		}

		next = resp.Paging.Next
	}

	slog.Info("[MetaClient] Fetched daily insights",
		"account_id", req.AccountID,
		"since", req.Since,
		"until", req.Until,
		"records", len(records))
	return records, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("meta insights: build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("meta insights: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("meta insights: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyError(resp.StatusCode, body)
	}
	return body, nil
}

// classifyError separates "reconnect your account" failures from
// generic provider errors so the HTTP layer can message them apart.
func classifyError(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	if er.Error.Type == "OAuthException" ||
		er.Error.Code == errCodeInvalidToken ||
		er.Error.Code == errCodeSessionBad {
		return fmt.Errorf("%w: %s", ErrAuth, er.Error.Message)
	}

	return &APIError{
		StatusCode: status,
		Code:       er.Error.Code,
		Type:       er.Error.Type,
		Message:    er.Error.Message,
		Raw:        string(body),
	}
}

func (c *Client) buildURL(req InsightsRequest) (string, error) {
	if req.AccountID == "" {
		return "", fmt.Errorf("meta insights: account id is required")
	}
	if req.AccessToken == "" {
		return "", fmt.Errorf("meta insights: access token is required")
	}

	level := req.Level
	if level == "" {
		level = defaultLevel
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	timeRange, err := json.Marshal(map[string]string{
		"since": req.Since,
		"until": req.Until,
	})
	if err != nil {
		return "", fmt.Errorf("meta insights: encode time range: %w", err)
	}

	q := url.Values{}
	q.Set("access_token", req.AccessToken)
	q.Set("fields", strings.Join(req.Fields, ","))
	q.Set("level", level)
	q.Set("time_range", string(timeRange))
	q.Set("time_increment", "1")
	q.Set("limit", strconv.Itoa(limit))

	if filtering := buildFiltering(req.Filters); filtering != "" {
		q.Set("filtering", filtering)
	}

	// Account IDs are accepted with or without the act_ prefix.
	accountID := strings.TrimPrefix(req.AccountID, "act_")

	return fmt.Sprintf("%s/%s/act_%s/insights?%s",
		c.baseURL, c.apiVersion, accountID, q.Encode()), nil
}

type filterExpr struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

func buildFiltering(f insights.Filters) string {
	if f.IsZero() {
		return ""
	}

	var exprs []filterExpr
	for _, name := range f.CampaignNames {
		exprs = append(exprs, filterExpr{Field: "campaign.name", Operator: "CONTAIN", Value: name})
	}
	for _, name := range f.AdSetNames {
		exprs = append(exprs, filterExpr{Field: "adset.name", Operator: "CONTAIN", Value: name})
	}
	for _, name := range f.AdNames {
		exprs = append(exprs, filterExpr{Field: "ad.name", Operator: "CONTAIN", Value: name})
	}

	encoded, err := json.Marshal(exprs)
	if err != nil {
		return ""
	}
	return string(encoded)
}
