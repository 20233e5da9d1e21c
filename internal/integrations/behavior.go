package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// behaviorConfig is the provider-specific part of the integration config.
// Behavior providers (session recording, heatmaps) use a project-scoped API
// key rather than OAuth.
type behaviorConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
}

// BehaviorFetcher pulls per-page engagement metrics (scroll depth, rage
// clicks, dead clicks) from a session-analytics provider.
type BehaviorFetcher struct {
	client  *http.Client
	baseURL string // overrides the config base URL when set, used by tests
}

// NewBehaviorFetcher creates a fetcher. A non-empty baseURL overrides the
// endpoint configured on the integration.
func NewBehaviorFetcher(client *http.Client, baseURL string) *BehaviorFetcher {
	return &BehaviorFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Provider returns the provider this fetcher serves.
func (f *BehaviorFetcher) Provider() models.IntegrationProvider {
	return models.ProviderBehavior
}

// Fetch retrieves the provider's per-page engagement report.
func (f *BehaviorFetcher) Fetch(ctx context.Context, fc FetchContext) ([]PageMetrics, error) {
	var cfg behaviorConfig
	if fc.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(fc.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("invalid behavior config: %w", err)
		}
	}
	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("behavior integration has no base_url configured")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("behavior integration has no project_id configured")
	}

	endpoint := fmt.Sprintf("%s/api/v1/projects/%s/page-metrics", baseURL, cfg.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", cfg.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("behavior request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("behavior provider returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Pages []struct {
			Path           string  `json:"path"`
			AvgScrollDepth float64 `json:"avg_scroll_depth"`
			RageClicks     int     `json:"rage_clicks"`
			DeadClicks     int     `json:"dead_clicks"`
			Sessions       int     `json:"sessions"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	idx := NewURLIndex(fc.URLs)
	metrics := make([]PageMetrics, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		pageURL, ok := idx.Resolve(page.Path)
		if !ok {
			continue
		}
		metrics = append(metrics, PageMetrics{
			URL: pageURL,
			Metrics: map[string]any{
				"avg_scroll_depth": page.AvgScrollDepth,
				"rage_clicks":      page.RageClicks,
				"dead_clicks":      page.DeadClicks,
				"sessions":         page.Sessions,
			},
		})
	}
	return metrics, nil
}
