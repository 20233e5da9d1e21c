package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

const defaultSearchConsoleBaseURL = "https://searchconsole.googleapis.com"

// searchConsoleConfig is the provider-specific part of the integration config.
type searchConsoleConfig struct {
	SiteURL string `json:"site_url"` // e.g. "sc-domain:example.com" or "https://example.com/"
}

// SearchConsoleFetcher pulls per-page search metrics (clicks, impressions,
// CTR, position) from the Search Console Search Analytics API.
type SearchConsoleFetcher struct {
	client  *http.Client
	baseURL string
}

// NewSearchConsoleFetcher creates a fetcher. An empty baseURL selects the
// production endpoint; tests point it at a local server.
func NewSearchConsoleFetcher(client *http.Client, baseURL string) *SearchConsoleFetcher {
	if baseURL == "" {
		baseURL = defaultSearchConsoleBaseURL
	}
	return &SearchConsoleFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Provider returns the provider this fetcher serves.
func (f *SearchConsoleFetcher) Provider() models.IntegrationProvider {
	return models.ProviderSearchConsole
}

// Fetch queries the last 28 days of search analytics grouped by page.
func (f *SearchConsoleFetcher) Fetch(ctx context.Context, fc FetchContext) ([]PageMetrics, error) {
	var cfg searchConsoleConfig
	if fc.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(fc.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("invalid search console config: %w", err)
		}
	}
	siteURL := cfg.SiteURL
	if siteURL == "" {
		siteURL = "sc-domain:" + fc.Domain
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -28)
	reqBody := map[string]any{
		"startDate":  start.Format("2006-01-02"),
		"endDate":    end.Format("2006-01-02"),
		"dimensions": []string{"page"},
		"rowLimit":   1000,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query",
		f.baseURL, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+fc.AccessToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search console request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search console returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Rows []struct {
			Keys        []string `json:"keys"`
			Clicks      float64  `json:"clicks"`
			Impressions float64  `json:"impressions"`
			CTR         float64  `json:"ctr"`
			Position    float64  `json:"position"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	idx := NewURLIndex(fc.URLs)
	metrics := make([]PageMetrics, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		pageURL, ok := idx.Resolve(row.Keys[0])
		if !ok {
			continue
		}
		metrics = append(metrics, PageMetrics{
			URL: pageURL,
			Metrics: map[string]any{
				"clicks":      int(row.Clicks),
				"impressions": int(row.Impressions),
				"ctr":         row.CTR,
				"position":    row.Position,
			},
		})
	}
	return metrics, nil
}
