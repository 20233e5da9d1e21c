package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lsendel/LLMRank-app-sub001/internal/concurrent"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

const defaultPageSpeedBaseURL = "https://www.googleapis.com"

// pageSpeedConfig is the provider-specific part of the integration config.
// PageSpeed uses an API key, not OAuth.
type pageSpeedConfig struct {
	APIKey   string `json:"api_key"`
	Strategy string `json:"strategy"` // mobile (default) or desktop
	MaxPages int    `json:"max_pages"`
}

// PageSpeedFetcher runs the PageSpeed Insights API against each page. The API
// audits one URL per call, so calls run concurrently with a small bound and a
// page cap from the config.
type PageSpeedFetcher struct {
	client  *http.Client
	baseURL string
}

// NewPageSpeedFetcher creates a fetcher. An empty baseURL selects the
// production endpoint.
func NewPageSpeedFetcher(client *http.Client, baseURL string) *PageSpeedFetcher {
	if baseURL == "" {
		baseURL = defaultPageSpeedBaseURL
	}
	return &PageSpeedFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Provider returns the provider this fetcher serves.
func (f *PageSpeedFetcher) Provider() models.IntegrationProvider {
	return models.ProviderPageSpeed
}

// Fetch audits up to the configured number of pages and returns their
// field-style lab metrics. Pages that fail individually are skipped.
func (f *PageSpeedFetcher) Fetch(ctx context.Context, fc FetchContext) ([]PageMetrics, error) {
	var cfg pageSpeedConfig
	if fc.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(fc.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("invalid pagespeed config: %w", err)
		}
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "mobile"
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 25
	}

	urls := fc.URLs
	if len(urls) > maxPages {
		urls = urls[:maxPages]
	}

	results := concurrent.MapSettle(ctx, urls, 4, func(ctx context.Context, pageURL string) (*PageMetrics, error) {
		return f.auditPage(ctx, pageURL, cfg)
	}, nil)

	metrics := make([]PageMetrics, 0, len(results))
	for _, r := range results {
		if r != nil {
			metrics = append(metrics, *r)
		}
	}
	return metrics, nil
}

func (f *PageSpeedFetcher) auditPage(ctx context.Context, pageURL string, cfg pageSpeedConfig) (*PageMetrics, error) {
	params := url.Values{
		"url":      {pageURL},
		"strategy": {cfg.Strategy},
	}
	if cfg.APIKey != "" {
		params.Set("key", cfg.APIKey)
	}

	endpoint := f.baseURL + "/pagespeedonline/v5/runPagespeed?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pagespeed returned status %d for %s", resp.StatusCode, pageURL)
	}

	var parsed struct {
		LighthouseResult struct {
			Categories struct {
				Performance struct {
					Score float64 `json:"score"` // 0..1
				} `json:"performance"`
			} `json:"categories"`
			Audits map[string]struct {
				NumericValue float64 `json:"numericValue"`
			} `json:"audits"`
		} `json:"lighthouseResult"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	m := map[string]any{
		"performance_score": int(parsed.LighthouseResult.Categories.Performance.Score * 100),
		"strategy":          cfg.Strategy,
	}
	for audit, key := range map[string]string{
		"largest-contentful-paint": "lcp_ms",
		"cumulative-layout-shift":  "cls",
		"total-blocking-time":      "tbt_ms",
		"speed-index":              "speed_index_ms",
	} {
		if v, ok := parsed.LighthouseResult.Audits[audit]; ok {
			m[key] = v.NumericValue
		}
	}

	return &PageMetrics{URL: pageURL, Metrics: m}, nil
}
