package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

const defaultAnalyticsBaseURL = "https://analyticsdata.googleapis.com"

// analyticsConfig is the provider-specific part of the integration config.
type analyticsConfig struct {
	PropertyID string `json:"property_id"` // GA4 numeric property ID
}

// AnalyticsFetcher pulls per-page traffic metrics (views, engagement, bounce
// rate) from the GA4 Data API. GA4 reports pages by path, so rows are matched
// back to crawled URLs through the URL index.
type AnalyticsFetcher struct {
	client  *http.Client
	baseURL string
}

// NewAnalyticsFetcher creates a fetcher. An empty baseURL selects the
// production endpoint.
func NewAnalyticsFetcher(client *http.Client, baseURL string) *AnalyticsFetcher {
	if baseURL == "" {
		baseURL = defaultAnalyticsBaseURL
	}
	return &AnalyticsFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Provider returns the provider this fetcher serves.
func (f *AnalyticsFetcher) Provider() models.IntegrationProvider {
	return models.ProviderWebAnalytics
}

// Fetch runs a 28-day report grouped by page path.
func (f *AnalyticsFetcher) Fetch(ctx context.Context, fc FetchContext) ([]PageMetrics, error) {
	var cfg analyticsConfig
	if fc.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(fc.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("invalid analytics config: %w", err)
		}
	}
	if cfg.PropertyID == "" {
		return nil, fmt.Errorf("analytics integration has no property_id configured")
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -28)
	reqBody := map[string]any{
		"dateRanges": []map[string]string{
			{"startDate": start.Format("2006-01-02"), "endDate": end.Format("2006-01-02")},
		},
		"dimensions": []map[string]string{{"name": "pagePath"}},
		"metrics": []map[string]string{
			{"name": "screenPageViews"},
			{"name": "averageSessionDuration"},
			{"name": "bounceRate"},
		},
		"limit": 1000,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/properties/%s:runReport", f.baseURL, cfg.PropertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+fc.AccessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analytics returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Rows []struct {
			DimensionValues []struct {
				Value string `json:"value"`
			} `json:"dimensionValues"`
			MetricValues []struct {
				Value string `json:"value"`
			} `json:"metricValues"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	idx := NewURLIndex(fc.URLs)
	metrics := make([]PageMetrics, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) < 3 {
			continue
		}
		pageURL, ok := idx.Resolve(row.DimensionValues[0].Value)
		if !ok {
			continue
		}
		views, _ := strconv.ParseFloat(row.MetricValues[0].Value, 64)
		duration, _ := strconv.ParseFloat(row.MetricValues[1].Value, 64)
		bounce, _ := strconv.ParseFloat(row.MetricValues[2].Value, 64)
		metrics = append(metrics, PageMetrics{
			URL: pageURL,
			Metrics: map[string]any{
				"page_views":           int(views),
				"avg_session_duration": duration,
				"bounce_rate":          bounce,
			},
		})
	}
	return metrics, nil
}
