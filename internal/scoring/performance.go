package scoring

import (
	"fmt"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// Core Web Vitals thresholds, milliseconds unless noted.
const (
	lcpPoorMs       = 4000
	lcpNeedsWorkMs  = 2500
	clsPoor         = 0.25
	clsNeedsWork    = 0.1
	ttfbPoorMs      = 1800
	ttfbNeedsWorkMs = 800
	heavyPageBytes  = 3 << 20
	manyRequests    = 150
	renderBlockMs   = 1000
)

// EvaluatePerformance checks lab metrics from the crawl. A page with no
// captured audit keeps the full score; absence of data is not a deficiency.
func EvaluatePerformance(in PageInput) DimensionResult {
	e := newEvaluator(models.CategoryPerformance)
	p := in.Perf
	if p == nil {
		return e.result()
	}

	switch {
	case p.LCPMs > lcpPoorMs:
		e.deductData(20, models.SeverityCritical, "SLOW_LCP",
			fmt.Sprintf("Largest Contentful Paint is %dms, over the %dms poor threshold", p.LCPMs, lcpPoorMs),
			"Optimize the largest above-the-fold element (image size, server response, render blocking)",
			map[string]any{"lcp_ms": p.LCPMs})
	case p.LCPMs > lcpNeedsWorkMs:
		e.deductData(10, models.SeverityWarning, "SLOW_LCP",
			fmt.Sprintf("Largest Contentful Paint is %dms, above the %dms target", p.LCPMs, lcpNeedsWorkMs),
			"Optimize the largest above-the-fold element (image size, server response, render blocking)",
			map[string]any{"lcp_ms": p.LCPMs})
	}

	switch {
	case p.CLS > clsPoor:
		e.deductData(15, models.SeverityCritical, "HIGH_CLS",
			fmt.Sprintf("Cumulative Layout Shift is %.2f, over the %.2f poor threshold", p.CLS, clsPoor),
			"Reserve space for images, ads and embeds so content does not shift",
			map[string]any{"cls": p.CLS})
	case p.CLS > clsNeedsWork:
		e.deductData(5, models.SeverityWarning, "HIGH_CLS",
			fmt.Sprintf("Cumulative Layout Shift is %.2f, above the %.2f target", p.CLS, clsNeedsWork),
			"Reserve space for images, ads and embeds so content does not shift",
			map[string]any{"cls": p.CLS})
	}

	switch {
	case p.TTFBMs > ttfbPoorMs:
		e.deductData(10, models.SeverityWarning, "SLOW_TTFB",
			fmt.Sprintf("Time to first byte is %dms", p.TTFBMs),
			"Cache responses or move the origin closer to users",
			map[string]any{"ttfb_ms": p.TTFBMs})
	case p.TTFBMs > ttfbNeedsWorkMs:
		e.deductData(5, models.SeverityInfo, "SLOW_TTFB",
			fmt.Sprintf("Time to first byte is %dms", p.TTFBMs),
			"Cache responses or move the origin closer to users",
			map[string]any{"ttfb_ms": p.TTFBMs})
	}

	if p.TotalBytes > heavyPageBytes {
		e.deductData(10, models.SeverityWarning, "HEAVY_PAGE",
			fmt.Sprintf("Page weighs %.1fMB", float64(p.TotalBytes)/(1<<20)),
			"Compress images and trim unused scripts and styles",
			map[string]any{"total_bytes": p.TotalBytes})
	}

	if p.RequestCount > manyRequests {
		e.deductData(5, models.SeverityInfo, "TOO_MANY_REQUESTS",
			fmt.Sprintf("Page makes %d network requests", p.RequestCount),
			"Bundle assets and drop third-party requests that add no value",
			map[string]any{"request_count": p.RequestCount})
	}

	if p.RenderBlockedMs > renderBlockMs {
		e.deductData(8, models.SeverityWarning, "RENDER_BLOCKING",
			fmt.Sprintf("Render was blocked for %dms by synchronous resources", p.RenderBlockedMs),
			"Defer non-critical scripts and inline critical CSS",
			map[string]any{"render_blocked_ms": p.RenderBlockedMs})
	}

	return e.result()
}
