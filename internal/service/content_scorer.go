package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lsendel/LLMRank-app-sub001/internal/concurrent"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
	"github.com/lsendel/LLMRank-app-sub001/internal/scoring"
)

// ContentScorer is the deferred content-quality pass. It runs after batch
// ingestion, groups eligible pages by content hash, obtains one judgment per
// unique hash (cache first, then model), and merges the judgment into each
// page's score. A page is touched at most once: pages whose detail already
// carries a judgment are skipped.
type ContentScorer struct {
	repos       *repository.Repositories
	store       ObjectStore
	judge       ContentJudge
	engine      *scoring.Engine
	concurrency int
	minWords    int
	logger      *slog.Logger
}

// NewContentScorer creates a new content scorer.
func NewContentScorer(
	repos *repository.Repositories,
	store ObjectStore,
	judge ContentJudge,
	engine *scoring.Engine,
	concurrency, minWords int,
	logger *slog.Logger,
) *ContentScorer {
	return &ContentScorer{
		repos:       repos,
		store:       store,
		judge:       judge,
		engine:      engine,
		concurrency: concurrency,
		minWords:    minWords,
		logger:      logger.With("component", "content-scorer"),
	}
}

// hashGroup is the set of pages in one batch sharing a content hash.
type hashGroup struct {
	hash  string
	pages []*models.Page
}

// ScorePages runs the deferred pass for the given pages of a job. Per-group
// failures are logged and skipped; the method only errors on setup problems.
func (s *ContentScorer) ScorePages(ctx context.Context, jobID string, pageIDs []string) error {
	pages, err := s.repos.Page.GetByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	wanted := make(map[string]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		wanted[id] = struct{}{}
	}

	// Group eligible pages by hash so one hash means at most one model call,
	// even within a single batch.
	groupByHash := make(map[string]*hashGroup)
	var order []string
	for _, p := range pages {
		if _, ok := wanted[p.ID]; !ok {
			continue
		}
		if p.WordCount < s.minWords || p.ContentHash == "" {
			continue
		}
		g, ok := groupByHash[p.ContentHash]
		if !ok {
			g = &hashGroup{hash: p.ContentHash}
			groupByHash[p.ContentHash] = g
			order = append(order, p.ContentHash)
		}
		g.pages = append(g.pages, p)
	}
	if len(order) == 0 {
		return nil
	}

	groups := make([]*hashGroup, len(order))
	for i, hash := range order {
		groups[i] = groupByHash[hash]
	}

	counts := concurrent.MapSettle(ctx, groups, s.concurrency, func(ctx context.Context, g *hashGroup) (int, error) {
		return s.scoreGroup(ctx, g)
	}, func(g *hashGroup, err error) {
		s.logger.Warn("content scoring failed for hash group",
			"job_id", jobID, "content_hash", g.hash, "pages", len(g.pages), "error", err)
	})
	applied := 0
	for _, n := range counts {
		applied += n
	}

	s.logger.Info("content scoring pass finished",
		"job_id", jobID, "groups", len(groups), "pages_updated", applied)
	return nil
}

// scoreGroup resolves a judgment for one content hash and applies it to every
// page in the group. Returns the number of pages updated.
func (s *ContentScorer) scoreGroup(ctx context.Context, g *hashGroup) (int, error) {
	judgment, err := s.resolveJudgment(ctx, g)
	if err != nil {
		return 0, err
	}
	if judgment == nil {
		// No stored HTML for any page in the group; nothing to judge.
		return 0, nil
	}

	applied := 0
	for _, page := range g.pages {
		ok, err := s.applyToPage(ctx, page.ID, judgment)
		if err != nil {
			s.logger.Warn("failed to apply content judgment",
				"page_id", page.ID, "content_hash", g.hash, "error", err)
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func (s *ContentScorer) resolveJudgment(ctx context.Context, g *hashGroup) (*models.ContentJudgment, error) {
	cached, err := s.repos.ContentCache.Get(ctx, g.hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	if cached != nil {
		var judgment models.ContentJudgment
		if err := json.Unmarshal([]byte(cached.JudgmentJSON), &judgment); err != nil {
			return nil, fmt.Errorf("corrupt cached judgment: %w", err)
		}
		judgment.FromCache = true
		if judgment.Model == "" {
			judgment.Model = cached.Model
		}
		return &judgment, nil
	}

	// Any page of the group works as the HTML source; they share content.
	var html string
	found := false
	for _, page := range g.pages {
		if page.HTMLKey == "" {
			continue
		}
		html, found, err = s.store.FetchHTML(ctx, page.HTMLKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch stored HTML: %w", err)
		}
		if found {
			break
		}
	}
	if !found {
		return nil, nil
	}

	text := extractText(html)
	if text == "" {
		return nil, nil
	}

	judgment, err := s.judge.JudgeContent(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("model judgment failed: %w", err)
	}

	judgmentJSON, err := json.Marshal(judgment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judgment: %w", err)
	}
	if err := s.repos.ContentCache.Put(ctx, &models.CachedJudgment{
		ContentHash:  g.hash,
		JudgmentJSON: string(judgmentJSON),
		Model:        judgment.Model,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		// Cache write failure costs a future model call, not correctness
		s.logger.Warn("failed to cache judgment", "content_hash", g.hash, "error", err)
	}

	return judgment, nil
}

// applyToPage merges the judgment into one page's score. Returns false when
// the page has no score yet or was already judged.
func (s *ContentScorer) applyToPage(ctx context.Context, pageID string, judgment *models.ContentJudgment) (bool, error) {
	score, err := s.repos.PageScore.GetByPageID(ctx, pageID)
	if err != nil {
		return false, err
	}
	if score == nil {
		return false, nil
	}
	if score.Detail.ContentQuality != nil {
		return false, nil
	}

	content := blendContentScore(score.Content, judgment)
	overall := s.engine.Overall(score.Technical, content, score.AIReadiness, score.Performance)
	grade := scoring.GradeFor(overall)

	if err := s.repos.PageScore.UpdateContentJudgment(ctx, pageID, content, overall, grade, judgment); err != nil {
		return false, err
	}
	return true, nil
}

// extractText strips markup and collapses whitespace, leaving the page's
// readable text for the model.
func extractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template, iframe").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}
