// Package repository defines repository interfaces for data access.
// All implementations are SQLite (libsql); methods that look up a single row
// return (nil, nil) when no row matches.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// ProjectRepository defines methods for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByDomain(ctx context.Context, domain string) (*models.Project, error)
	List(ctx context.Context, limit, offset int) ([]*models.Project, error)
}

// CrawlJobRepository defines methods for crawl job data access.
type CrawlJobRepository interface {
	Create(ctx context.Context, job *models.CrawlJob) error
	GetByID(ctx context.Context, id string) (*models.CrawlJob, error)
	GetByProjectID(ctx context.Context, projectID string, limit, offset int) ([]*models.CrawlJob, error)
	// Transition moves a job from any of the given states to the target state.
	// Returns false without error when the job was not in an allowed state,
	// which is how concurrent writers and terminal jobs are fenced off.
	Transition(ctx context.Context, id string, from []models.JobStatus, to models.JobStatus) (bool, error)
	// Fail moves a non-terminal job to failed and records the message.
	Fail(ctx context.Context, id, message string) (bool, error)
	// Cancel moves a non-terminal job to cancelled.
	Cancel(ctx context.Context, id string) (bool, error)
	// UpdateCounters applies batch progress in one guarded statement.
	// pagesFound only ever grows and pages_scored is capped at pages_found.
	// Terminal jobs are never touched.
	UpdateCounters(ctx context.Context, id string, pagesFound, crawledDelta, scoredDelta int) error
	// MarkStaleRunningJobsFailed fails jobs stuck in an active state longer
	// than maxAge, e.g. after a server restart. Returns the number failed.
	MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error)
}

// PageRepository defines methods for page data access.
type PageRepository interface {
	// CreateBatch inserts pages, updating crawl fields when the same
	// (job, url) pair arrives again in a later batch.
	CreateBatch(ctx context.Context, pages []*models.Page) error
	GetByID(ctx context.Context, id string) (*models.Page, error)
	GetByJobID(ctx context.Context, jobID string) ([]*models.Page, error)
}

// PageScoreRepository defines methods for page score data access.
type PageScoreRepository interface {
	// CreateBatch writes scores, replacing any previous score for the same
	// page (rescoring overwrites).
	CreateBatch(ctx context.Context, scores []*models.PageScore) error
	GetByPageID(ctx context.Context, pageID string) (*models.PageScore, error)
	GetByJobID(ctx context.Context, jobID string) ([]*models.PageScore, error)
	// UpdateContentJudgment merges the deferred content-quality judgment into
	// an existing score row without disturbing the rule-derived detail.
	UpdateContentJudgment(ctx context.Context, pageID string, content, overall int, grade models.Grade, judgment *models.ContentJudgment) error
}

// IssueRepository defines methods for issue data access.
type IssueRepository interface {
	CreateBatch(ctx context.Context, issues []*models.Issue) error
	GetByJobID(ctx context.Context, jobID string) ([]*models.Issue, error)
	GetByPageID(ctx context.Context, pageID string) ([]*models.Issue, error)
	// DeleteByJobID clears a job's issues ahead of a rescore.
	DeleteByJobID(ctx context.Context, jobID string) error
}

// EnrichmentRepository defines methods for enrichment result data access.
type EnrichmentRepository interface {
	CreateBatch(ctx context.Context, results []*models.EnrichmentResult) error
	GetByJobID(ctx context.Context, jobID string) ([]*models.EnrichmentResult, error)
}

// IntegrationRepository defines methods for integration data access.
type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.Integration) error
	GetByID(ctx context.Context, id string) (*models.Integration, error)
	GetEnabledByProjectID(ctx context.Context, projectID string) ([]*models.Integration, error)
	// UpdateTokens persists freshly refreshed (already encrypted) tokens.
	UpdateTokens(ctx context.Context, id, accessTokenEncrypted, refreshTokenEncrypted string, expiresAt *time.Time) error
	UpdateLastSynced(ctx context.Context, id string, syncedAt time.Time) error
}

// ContentCacheRepository defines methods for the content judgment cache.
type ContentCacheRepository interface {
	Get(ctx context.Context, contentHash string) (*models.CachedJudgment, error)
	Put(ctx context.Context, judgment *models.CachedJudgment) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Project      ProjectRepository
	CrawlJob     CrawlJobRepository
	Page         PageRepository
	PageScore    PageScoreRepository
	Issue        IssueRepository
	Enrichment   EnrichmentRepository
	Integration  IntegrationRepository
	ContentCache ContentCacheRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Project:      NewSQLiteProjectRepository(db),
		CrawlJob:     NewSQLiteCrawlJobRepository(db),
		Page:         NewSQLitePageRepository(db),
		PageScore:    NewSQLitePageScoreRepository(db),
		Issue:        NewSQLiteIssueRepository(db),
		Enrichment:   NewSQLiteEnrichmentRepository(db),
		Integration:  NewSQLiteIntegrationRepository(db),
		ContentCache: NewSQLiteContentCacheRepository(db),
	}
}
