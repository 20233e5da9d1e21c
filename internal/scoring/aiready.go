package scoring

import (
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// EvaluateAIReadiness checks how well a page exposes machine-readable
// structure for AI crawlers and answer engines.
func EvaluateAIReadiness(in PageInput) DimensionResult {
	e := newEvaluator(models.CategoryAIReadiness)
	s := in.Signals

	if !s.HasStructuredData() {
		e.deduct(15, models.SeverityWarning, "NO_STRUCTURED_DATA",
			"Page has no schema.org structured data",
			"Add JSON-LD markup (Article, Product, FAQ, etc.) describing the page")
	}

	if !s.HasOpenGraph {
		e.deduct(5, models.SeverityInfo, "MISSING_OPEN_GRAPH",
			"Page has no Open Graph tags",
			"Add og:title, og:description and og:image so shares and previews render")
	}

	if s.SemanticElements == 0 {
		e.deduct(10, models.SeverityWarning, "NO_SEMANTIC_HTML",
			"Page uses no semantic landmarks (main, article, section, nav)",
			"Wrap content regions in semantic elements instead of generic divs")
	}

	if s.Lang == "" {
		e.deduct(5, models.SeverityInfo, "MISSING_LANG_ATTR",
			"Document declares no language",
			"Set the lang attribute on the <html> element")
	}

	if s.WordCount > 0 && len(s.HeadingLevels) == 0 {
		e.deduct(10, models.SeverityWarning, "UNSTRUCTURED_CONTENT",
			"Page has body text but no headings",
			"Break the content into sections with descriptive headings")
	}

	return e.result()
}
