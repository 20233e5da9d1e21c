package scoring

import (
	"fmt"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// EvaluateContent checks text substance and document structure. The deeper
// content-quality judgment happens asynchronously in the deferred scorer;
// these rules only cover what the DOM alone can prove.
func EvaluateContent(in PageInput) DimensionResult {
	e := newEvaluator(models.CategoryContent)
	s := in.Signals

	if in.StatusCode < 400 {
		switch {
		case s.WordCount == 0:
			e.deduct(30, models.SeverityCritical, "NO_EXTRACTABLE_TEXT",
				"No readable text could be extracted from the page",
				"Serve primary content as HTML text, not images or client-only rendering")
		case s.WordCount < 300:
			e.deductData(15, models.SeverityWarning, "THIN_CONTENT",
				fmt.Sprintf("Page has only %d words of content", s.WordCount),
				"Expand the page to cover its topic in depth",
				map[string]any{"word_count": s.WordCount})
		}
	}

	switch {
	case s.H1Count == 0:
		e.deduct(10, models.SeverityWarning, "MISSING_H1",
			"Page has no <h1> heading",
			"Add a single h1 describing the page topic")
	case s.H1Count > 1:
		e.deductData(5, models.SeverityInfo, "MULTIPLE_H1",
			fmt.Sprintf("Page has %d h1 headings", s.H1Count),
			"Keep one h1 and demote the others",
			map[string]any{"h1_count": s.H1Count})
	}

	if skipsHeadingLevel(s.HeadingLevels) {
		e.deduct(5, models.SeverityInfo, "BROKEN_HEADING_HIERARCHY",
			"Heading levels skip (e.g. h1 followed by h3)",
			"Nest headings sequentially without skipping levels")
	}

	if s.ImagesMissingAlt > 0 {
		e.deductData(8, models.SeverityWarning, "IMAGES_MISSING_ALT",
			fmt.Sprintf("%d of %d images have no alt text", s.ImagesMissingAlt, s.ImagesTotal),
			"Add descriptive alt text to every content image",
			map[string]any{"missing": s.ImagesMissingAlt, "total": s.ImagesTotal})
	}

	if s.InternalLinks == 0 {
		e.deduct(5, models.SeverityInfo, "NO_INTERNAL_LINKS",
			"Page links to no other pages on the site",
			"Link related pages so crawlers and readers can navigate the site")
	}

	return e.result()
}

// skipsHeadingLevel reports whether any heading jumps more than one level
// deeper than the one before it.
func skipsHeadingLevel(levels []int) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1]+1 {
			return true
		}
	}
	return false
}
