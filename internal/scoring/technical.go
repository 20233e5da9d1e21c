package scoring

import (
	"fmt"
	"strings"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// EvaluateTechnical checks crawlability and metadata hygiene. Mixes per-page
// conditions with site-scoped ones (sitemap, robots.txt).
func EvaluateTechnical(in PageInput) DimensionResult {
	e := newEvaluator(models.CategoryTechnical)
	s := in.Signals

	switch {
	case in.StatusCode >= 500:
		e.deductData(40, models.SeverityCritical, "PAGE_SERVER_ERROR",
			fmt.Sprintf("Page returned HTTP %d", in.StatusCode),
			"Fix the server error so the page is reachable by crawlers",
			map[string]any{"status_code": in.StatusCode})
	case in.StatusCode >= 400:
		e.deductData(30, models.SeverityCritical, "PAGE_NOT_REACHABLE",
			fmt.Sprintf("Page returned HTTP %d", in.StatusCode),
			"Restore the page or remove links pointing to it",
			map[string]any{"status_code": in.StatusCode})
	}

	if in.URL != "" && !strings.HasPrefix(in.URL, "https://") {
		e.deduct(15, models.SeverityCritical, "NOT_HTTPS",
			"Page is not served over HTTPS",
			"Serve all pages over HTTPS and redirect HTTP traffic")
	}

	if s.Title == "" {
		e.deduct(10, models.SeverityWarning, "MISSING_TITLE",
			"Page has no <title> element",
			"Add a unique, descriptive title of 50-60 characters")
	} else if len(s.Title) > 60 {
		e.deductData(3, models.SeverityInfo, "TITLE_TOO_LONG",
			fmt.Sprintf("Title is %d characters, search engines truncate around 60", len(s.Title)),
			"Shorten the title to 60 characters or fewer",
			map[string]any{"length": len(s.Title)})
	}

	if s.MetaDescription == "" {
		e.deduct(10, models.SeverityWarning, "MISSING_META_DESC",
			"Page has no meta description",
			"Add a meta description of 120-160 characters summarizing the page")
	} else if len(s.MetaDescription) > 160 {
		e.deductData(3, models.SeverityInfo, "META_DESC_TOO_LONG",
			fmt.Sprintf("Meta description is %d characters, search engines truncate around 160", len(s.MetaDescription)),
			"Shorten the meta description to 160 characters or fewer",
			map[string]any{"length": len(s.MetaDescription)})
	}

	if s.CanonicalURL == "" {
		e.deduct(5, models.SeverityInfo, "MISSING_CANONICAL",
			"Page declares no canonical URL",
			"Add a rel=canonical link to avoid duplicate-content ambiguity")
	}

	if !s.HasViewport {
		e.deduct(5, models.SeverityWarning, "MISSING_VIEWPORT",
			"Page has no viewport meta tag",
			"Add <meta name=\"viewport\"> so the page renders correctly on mobile")
	}

	site := in.Site
	if site.RobotsBlocksCrawl {
		e.deduct(20, models.SeverityCritical, "ROBOTS_BLOCKS_CRAWL",
			"robots.txt blocks crawlers from this site",
			"Remove the disallow rules that block search and AI crawlers")
	} else if !site.HasRobotsTxt {
		e.deduct(4, models.SeverityInfo, "NO_ROBOTS_TXT",
			"Site has no robots.txt",
			"Publish a robots.txt declaring crawl policy and the sitemap location")
	}

	switch {
	case !site.HasSitemap:
		e.deductData(10, models.SeverityWarning, "NO_SITEMAP",
			"Site has no XML sitemap",
			"Publish a sitemap.xml listing all indexable pages",
			map[string]any{"pages_discovered": site.PagesDiscovered})
	case !site.SitemapValid:
		e.deduct(8, models.SeverityWarning, "INVALID_SITEMAP",
			"Sitemap exists but could not be parsed",
			"Fix the sitemap XML so crawlers can read it")
	default:
		if cov := site.SitemapCoverage(); cov < 0.5 {
			e.deductData(5, models.SeverityInfo, "SITEMAP_LOW_COVERAGE",
				fmt.Sprintf("Sitemap lists %d of %d discovered pages", site.SitemapURLCount, site.PagesDiscovered),
				"Add missing pages to the sitemap",
				map[string]any{"sitemap_urls": site.SitemapURLCount, "pages_discovered": site.PagesDiscovered})
		}
		if site.SitemapAgeDays > 180 {
			e.deductData(4, models.SeverityInfo, "SITEMAP_STALE",
				fmt.Sprintf("Sitemap lastmod is %d days old", site.SitemapAgeDays),
				"Regenerate the sitemap when content changes",
				map[string]any{"age_days": site.SitemapAgeDays})
		}
	}

	return e.result()
}
