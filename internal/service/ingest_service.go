package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
	"github.com/lsendel/LLMRank-app-sub001/internal/scoring"
	"github.com/lsendel/LLMRank-app-sub001/internal/tasks"
)

// Sentinel errors mapped to HTTP statuses at the handler layer.
var (
	ErrJobNotFound  = errors.New("crawl job not found")
	ErrJobNotActive = errors.New("crawl job is in a terminal state")
	ErrInvalidBatch = errors.New("invalid batch")
)

// BatchPage is one crawled page as reported by the crawler.
type BatchPage struct {
	URL          string                   `json:"url"`
	StatusCode   int                      `json:"status_code"`
	Signals      models.PageSignals       `json:"signals"`
	Perf         *models.PerformanceAudit `json:"perf,omitempty"`
	ContentHash  string                   `json:"content_hash,omitempty"`
	HTMLKey      string                   `json:"html_key,omitempty"`
	PerfAuditKey string                   `json:"perf_audit_key,omitempty"`
}

// BatchStats carries the crawler's aggregate progress for the job.
type BatchStats struct {
	PagesFound   int `json:"pages_found"`
	PagesCrawled int `json:"pages_crawled"`
}

// BatchInput is one ingestion batch for a job.
type BatchInput struct {
	Final bool               `json:"final"`
	Site  models.SiteContext `json:"site"`
	Pages []BatchPage        `json:"pages"`
	Stats BatchStats         `json:"stats"`
}

// IngestService coordinates batch ingestion: page persistence, synchronous
// rule scoring, job state transitions and counter updates, plus scheduling of
// the deferred content scorer and (on the final batch) enrichment.
type IngestService struct {
	repos      *repository.Repositories
	engine     *scoring.Engine
	runner     *tasks.Runner
	scorer     *ContentScorer
	enrichment *EnrichmentService
	logger     *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	repos *repository.Repositories,
	engine *scoring.Engine,
	runner *tasks.Runner,
	scorer *ContentScorer,
	enrichment *EnrichmentService,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		repos:      repos,
		engine:     engine,
		runner:     runner,
		scorer:     scorer,
		enrichment: enrichment,
		logger:     logger.With("component", "ingest"),
	}
}

// IngestBatch processes one batch for a job. Validation failures reject the
// whole batch before any database mutation. On success the content scorer is
// scheduled for the batch's pages, and when final is set the enrichment
// orchestrator is scheduled for the job.
func (s *IngestService) IngestBatch(ctx context.Context, jobID string, input *BatchInput) (*models.CrawlJob, error) {
	if err := validateBatch(input); err != nil {
		return nil, err
	}

	job, err := s.repos.CrawlJob.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrJobNotActive, job.Status)
	}

	if job.Status == models.JobStatusPending {
		if _, err := s.repos.CrawlJob.Transition(ctx, jobID,
			[]models.JobStatus{models.JobStatusPending}, models.JobStatusCrawling); err != nil {
			return nil, fmt.Errorf("failed to start job: %w", err)
		}
	}

	now := time.Now().UTC()
	pages := make([]*models.Page, len(input.Pages))
	for i, bp := range input.Pages {
		pages[i] = &models.Page{
			ID:              ulid.Make().String(),
			JobID:           jobID,
			URL:             bp.URL,
			CanonicalURL:    bp.Signals.CanonicalURL,
			StatusCode:      bp.StatusCode,
			Title:           bp.Signals.Title,
			MetaDescription: bp.Signals.MetaDescription,
			WordCount:       bp.Signals.WordCount,
			ContentHash:     bp.ContentHash,
			HTMLKey:         bp.HTMLKey,
			PerfAuditKey:    bp.PerfAuditKey,
			CreatedAt:       now,
		}
	}
	if err := s.repos.Page.CreateBatch(ctx, pages); err != nil {
		return nil, fmt.Errorf("failed to persist pages: %w", err)
	}

	// A re-sent URL upserts into its existing row, so the generated IDs above
	// may not be the persisted ones. Resolve them before writing scores.
	persisted, err := s.repos.Page.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload pages: %w", err)
	}
	idByURL := make(map[string]string, len(persisted))
	for _, p := range persisted {
		idByURL[p.URL] = p.ID
	}
	for _, p := range pages {
		if id, ok := idByURL[p.URL]; ok {
			p.ID = id
		}
	}

	if _, err := s.repos.CrawlJob.Transition(ctx, jobID,
		[]models.JobStatus{models.JobStatusCrawling}, models.JobStatusScoring); err != nil {
		return nil, fmt.Errorf("failed to enter scoring: %w", err)
	}

	scores := make([]*models.PageScore, 0, len(pages))
	var issues []*models.Issue
	for i, page := range pages {
		bp := input.Pages[i]
		result := s.engine.ScorePage(scoring.PageInput{
			URL:        bp.URL,
			StatusCode: bp.StatusCode,
			Signals:    bp.Signals,
			Site:       input.Site,
			Perf:       bp.Perf,
		})
		scores = append(scores, buildScore(page, jobID, bp, input.Site, &result, now))
		issues = append(issues, buildIssues(page.ID, jobID, result.Findings, now)...)
	}

	if err := s.repos.PageScore.CreateBatch(ctx, scores); err != nil {
		return nil, fmt.Errorf("failed to persist scores: %w", err)
	}
	if err := s.repos.Issue.CreateBatch(ctx, issues); err != nil {
		return nil, fmt.Errorf("failed to persist issues: %w", err)
	}

	if err := s.repos.CrawlJob.UpdateCounters(ctx, jobID,
		input.Stats.PagesFound, input.Stats.PagesCrawled, len(scores)); err != nil {
		return nil, fmt.Errorf("failed to update counters: %w", err)
	}

	target := models.JobStatusCrawling
	if input.Final {
		target = models.JobStatusComplete
	}
	if _, err := s.repos.CrawlJob.Transition(ctx, jobID,
		[]models.JobStatus{models.JobStatusScoring}, target); err != nil {
		return nil, fmt.Errorf("failed to leave scoring: %w", err)
	}

	s.scheduleFollowups(jobID, pages, input.Final)

	updated, err := s.repos.CrawlJob.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload job: %w", err)
	}
	s.logger.Info("batch ingested",
		"job_id", jobID,
		"pages", len(pages),
		"issues", len(issues),
		"final", input.Final,
	)
	return updated, nil
}

// scheduleFollowups submits background work without awaiting it. A full
// runner is logged and dropped; the next batch or a rescore recovers.
func (s *IngestService) scheduleFollowups(jobID string, pages []*models.Page, final bool) {
	pageIDs := make([]string, len(pages))
	for i, p := range pages {
		pageIDs[i] = p.ID
	}
	if err := s.runner.Submit("content-score", func(ctx context.Context) error {
		return s.scorer.ScorePages(ctx, jobID, pageIDs)
	}); err != nil {
		s.logger.Warn("could not schedule content scoring", "job_id", jobID, "error", err)
	}

	if final {
		if err := s.runner.Submit("enrichment", func(ctx context.Context) error {
			return s.enrichment.EnrichJob(ctx, jobID)
		}); err != nil {
			s.logger.Warn("could not schedule enrichment", "job_id", jobID, "error", err)
		}
	}
}

// RescoreJob re-runs the rule engine over a job's stored pages using the raw
// signals persisted inside each score's detail. Scores are replaced in place
// and the job's issues are rebuilt. Content judgments already attached are
// preserved and re-blended.
func (s *IngestService) RescoreJob(ctx context.Context, jobID string) (int, error) {
	job, err := s.repos.CrawlJob.GetByID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return 0, ErrJobNotFound
	}

	existing, err := s.repos.PageScore.GetByJobID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to load scores: %w", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}

	pages, err := s.repos.Page.GetByJobID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to load pages: %w", err)
	}
	pageByID := make(map[string]*models.Page, len(pages))
	for _, p := range pages {
		pageByID[p.ID] = p
	}

	now := time.Now().UTC()
	scores := make([]*models.PageScore, 0, len(existing))
	var issues []*models.Issue
	for _, old := range existing {
		page := pageByID[old.PageID]
		if page == nil {
			continue
		}
		result := s.engine.ScorePage(scoring.PageInput{
			URL:        page.URL,
			StatusCode: page.StatusCode,
			Signals:    old.Detail.Signals,
			Site:       old.Detail.Site,
			Perf:       old.Detail.Perf,
		})

		score := &models.PageScore{
			ID:          old.ID,
			PageID:      old.PageID,
			JobID:       jobID,
			Technical:   result.Technical,
			Content:     result.Content,
			AIReadiness: result.AIReadiness,
			Performance: result.Performance,
			Overall:     result.Overall,
			Grade:       result.Grade,
			Detail: models.ScoreDetail{
				Signals:        old.Detail.Signals,
				Site:           old.Detail.Site,
				Perf:           old.Detail.Perf,
				Deductions:     result.Deductions(),
				ContentQuality: old.Detail.ContentQuality,
			},
			CreatedAt: old.CreatedAt,
			UpdatedAt: now,
		}
		if old.Detail.ContentQuality != nil {
			score.Content = blendContentScore(result.Content, old.Detail.ContentQuality)
			score.Overall = s.engine.Overall(score.Technical, score.Content, score.AIReadiness, score.Performance)
			score.Grade = scoring.GradeFor(score.Overall)
		}
		scores = append(scores, score)
		issues = append(issues, buildIssues(old.PageID, jobID, result.Findings, now)...)
	}

	if err := s.repos.Issue.DeleteByJobID(ctx, jobID); err != nil {
		return 0, fmt.Errorf("failed to clear issues: %w", err)
	}
	if err := s.repos.PageScore.CreateBatch(ctx, scores); err != nil {
		return 0, fmt.Errorf("failed to persist scores: %w", err)
	}
	if err := s.repos.Issue.CreateBatch(ctx, issues); err != nil {
		return 0, fmt.Errorf("failed to persist issues: %w", err)
	}

	s.logger.Info("job rescored", "job_id", jobID, "pages", len(scores), "issues", len(issues))
	return len(scores), nil
}

func validateBatch(input *BatchInput) error {
	if input == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidBatch)
	}
	if len(input.Pages) == 0 && !input.Final {
		return fmt.Errorf("%w: non-final batch carries no pages", ErrInvalidBatch)
	}
	if input.Stats.PagesFound < 0 || input.Stats.PagesCrawled < 0 {
		return fmt.Errorf("%w: negative crawl stats", ErrInvalidBatch)
	}
	seen := make(map[string]struct{}, len(input.Pages))
	for i, p := range input.Pages {
		if p.URL == "" {
			return fmt.Errorf("%w: page %d has no URL", ErrInvalidBatch, i)
		}
		if _, dup := seen[p.URL]; dup {
			return fmt.Errorf("%w: duplicate URL in batch: %s", ErrInvalidBatch, p.URL)
		}
		seen[p.URL] = struct{}{}
	}
	return nil
}

func buildScore(page *models.Page, jobID string, bp BatchPage, site models.SiteContext, result *scoring.Result, now time.Time) *models.PageScore {
	return &models.PageScore{
		ID:          ulid.Make().String(),
		PageID:      page.ID,
		JobID:       jobID,
		Technical:   result.Technical,
		Content:     result.Content,
		AIReadiness: result.AIReadiness,
		Performance: result.Performance,
		Overall:     result.Overall,
		Grade:       result.Grade,
		Detail: models.ScoreDetail{
			Signals:    bp.Signals,
			Site:       site,
			Perf:       bp.Perf,
			Deductions: result.Deductions(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func buildIssues(pageID, jobID string, findings []scoring.Finding, now time.Time) []*models.Issue {
	if len(findings) == 0 {
		return nil
	}
	issues := make([]*models.Issue, 0, len(findings))
	for _, f := range findings {
		var dataJSON string
		if len(f.Data) > 0 {
			if b, err := json.Marshal(f.Data); err == nil {
				dataJSON = string(b)
			}
		}
		issues = append(issues, &models.Issue{
			ID:             ulid.Make().String(),
			PageID:         pageID,
			JobID:          jobID,
			Category:       f.Category,
			Severity:       f.Severity,
			Code:           f.Code,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			DataJSON:       dataJSON,
			CreatedAt:      now,
		})
	}
	return issues
}

// blendContentScore folds the model's judgment into the rule-derived content
// score with equal weight.
func blendContentScore(ruleScore int, judgment *models.ContentJudgment) int {
	blended := (ruleScore + judgment.Overall) / 2
	if blended < 0 {
		return 0
	}
	if blended > 100 {
		return 100
	}
	return blended
}
