package models

// PageSignals carries the DOM signals the crawler extracted for one page.
// The scoring engine treats this struct as read-only input; it is persisted
// verbatim inside ScoreDetail so a job can be rescored without re-crawling.
type PageSignals struct {
	Title               string   `json:"title,omitempty"`
	MetaDescription     string   `json:"meta_description,omitempty"`
	CanonicalURL        string   `json:"canonical_url,omitempty"`
	Lang                string   `json:"lang,omitempty"`
	H1Count             int      `json:"h1_count"`
	HeadingLevels       []int    `json:"heading_levels,omitempty"` // document order, e.g. [1,2,2,3]
	WordCount           int      `json:"word_count"`
	ImagesTotal         int      `json:"images_total"`
	ImagesMissingAlt    int      `json:"images_missing_alt"`
	InternalLinks       int      `json:"internal_links"`
	ExternalLinks       int      `json:"external_links"`
	StructuredDataTypes []string `json:"structured_data_types,omitempty"` // schema.org @type values
	HasOpenGraph        bool     `json:"has_open_graph"`
	HasViewport         bool     `json:"has_viewport"`
	SemanticElements    int      `json:"semantic_elements"` // main/article/section/nav/aside count
}

// HasStructuredData reports whether any JSON-LD or microdata was found.
func (s *PageSignals) HasStructuredData() bool {
	return len(s.StructuredDataTypes) > 0
}

// SiteContext carries site-wide facts shared by every page in a batch.
// Rules scoped to it produce the same deduction on each page of the site.
type SiteContext struct {
	Domain            string `json:"domain"`
	HasSitemap        bool   `json:"has_sitemap"`
	SitemapValid      bool   `json:"sitemap_valid"`
	SitemapURLCount   int    `json:"sitemap_url_count"`
	PagesDiscovered   int    `json:"pages_discovered"`
	SitemapAgeDays    int    `json:"sitemap_age_days"` // days since lastmod, 0 if unknown
	HasRobotsTxt      bool   `json:"has_robots_txt"`
	RobotsBlocksCrawl bool   `json:"robots_blocks_crawl"`
}

// SitemapCoverage returns the fraction of discovered pages present in the
// sitemap, or 1 when nothing was discovered.
func (c *SiteContext) SitemapCoverage() float64 {
	if c.PagesDiscovered == 0 {
		return 1
	}
	cov := float64(c.SitemapURLCount) / float64(c.PagesDiscovered)
	if cov > 1 {
		cov = 1
	}
	return cov
}

// PerformanceAudit holds lab metrics captured by the crawler for one page.
// All durations are milliseconds.
type PerformanceAudit struct {
	TTFBMs          int     `json:"ttfb_ms"`
	FCPMs           int     `json:"fcp_ms"`
	LCPMs           int     `json:"lcp_ms"`
	CLS             float64 `json:"cls"`
	TotalBytes      int64   `json:"total_bytes"`
	RequestCount    int     `json:"request_count"`
	RenderBlockedMs int     `json:"render_blocked_ms"`
}
