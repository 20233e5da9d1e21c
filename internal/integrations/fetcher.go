// Package integrations contains the analytics provider fetchers used by the
// enrichment orchestrator. Each fetcher turns one provider's API into
// per-page metric rows keyed by the crawled URL.
package integrations

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// PageMetrics is one provider metric row resolved to a crawled URL.
type PageMetrics struct {
	URL     string
	Metrics map[string]any
}

// FetchContext is everything a fetcher needs for one enrichment run.
type FetchContext struct {
	Domain      string
	URLs        []string // crawled page URLs of the job
	AccessToken string   // decrypted, refreshed where needed; empty for key-based providers
	ConfigJSON  string   // provider-specific settings from the integration row
}

// Fetcher retrieves external metrics for a set of pages.
type Fetcher interface {
	Provider() models.IntegrationProvider
	Fetch(ctx context.Context, fc FetchContext) ([]PageMetrics, error)
}

// DefaultFetchers returns the production fetcher set.
func DefaultFetchers(client *http.Client) map[models.IntegrationProvider]Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return map[models.IntegrationProvider]Fetcher{
		models.ProviderSearchConsole: NewSearchConsoleFetcher(client, ""),
		models.ProviderPageSpeed:     NewPageSpeedFetcher(client, ""),
		models.ProviderWebAnalytics:  NewAnalyticsFetcher(client, ""),
		models.ProviderBehavior:      NewBehaviorFetcher(client, ""),
	}
}

// URLIndex resolves provider-reported page keys back to crawled URLs.
// Providers report either full URLs (Search Console) or bare paths (GA4),
// so the index matches exact URLs first and falls back to path matching.
type URLIndex struct {
	byExact map[string]string
	byPath  map[string]string
}

// NewURLIndex builds an index over the job's crawled URLs.
func NewURLIndex(urls []string) *URLIndex {
	idx := &URLIndex{
		byExact: make(map[string]string, len(urls)),
		byPath:  make(map[string]string, len(urls)),
	}
	for _, u := range urls {
		idx.byExact[u] = u
		if p := urlPath(u); p != "" {
			// First URL wins when two crawled URLs share a path.
			if _, ok := idx.byPath[p]; !ok {
				idx.byPath[p] = u
			}
		}
	}
	return idx
}

// Resolve maps a provider key to a crawled URL.
func (idx *URLIndex) Resolve(key string) (string, bool) {
	if u, ok := idx.byExact[key]; ok {
		return u, true
	}
	if u, ok := idx.byPath[normalizePath(key)]; ok {
		return u, true
	}
	return "", false
}

// urlPath extracts the normalized path of a full URL.
func urlPath(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return normalizePath(parsed.Path)
}

// normalizePath strips query strings and trailing slashes so "/pricing/" and
// "/pricing?ref=x" land on the same key. The root path stays "/".
func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}
