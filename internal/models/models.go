// Package models defines the domain models for the audit pipeline.
// A Project owns CrawlJobs; each job receives crawled pages in batches,
// every page gets one PageScore plus zero or more Issues, and final batches
// additionally produce EnrichmentResult rows from third-party providers.
package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
// Transitions are monotonic: pending -> crawling -> scoring -> complete,
// with failed and cancelled reachable from any non-terminal state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCrawling  JobStatus = "crawling"
	JobStatusScoring   JobStatus = "scoring"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusCancelled
}

// Project represents an audited site.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// CrawlJob represents one audit run for a project.
// Only the ingestion path mutates a job; once terminal it is immutable.
type CrawlJob struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Status       JobStatus  `json:"status"`
	PagesFound   int        `json:"pages_found"`
	PagesCrawled int        `json:"pages_crawled"`
	PagesScored  int        `json:"pages_scored"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Page represents one crawled URL within a job. Created once per (job, URL)
// pair at ingestion time and never mutated afterwards.
type Page struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	URL             string    `json:"url"`
	CanonicalURL    string    `json:"canonical_url,omitempty"`
	StatusCode      int       `json:"status_code"`
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	WordCount       int       `json:"word_count"`
	ContentHash     string    `json:"content_hash,omitempty"` // fingerprint of rendered text
	HTMLKey         string    `json:"html_key,omitempty"`     // object storage key of raw HTML
	PerfAuditKey    string    `json:"perf_audit_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Grade is a letter grade derived from the overall score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// PageScore holds the scoring result for one page. Dimension scores and the
// overall score are always within [0,100]. Detail is written once at scoring
// time and updated at most once more when the content-quality judgment lands.
type PageScore struct {
	ID          string      `json:"id"`
	PageID      string      `json:"page_id"`
	JobID       string      `json:"job_id"`
	Technical   int         `json:"technical"`
	Content     int         `json:"content"`
	AIReadiness int         `json:"ai_readiness"`
	Performance int         `json:"performance"`
	Overall     int         `json:"overall"`
	Grade       Grade       `json:"grade"`
	Detail      ScoreDetail `json:"detail"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ScoreDetail keeps rule-derived and model-derived data in separate fields so
// the deferred content scorer can merge its judgment without touching the
// signals the rule engine recorded.
type ScoreDetail struct {
	Signals        PageSignals       `json:"signals"`
	Site           SiteContext       `json:"site"`
	Perf           *PerformanceAudit `json:"perf,omitempty"`
	Deductions     []Deduction       `json:"deductions,omitempty"`
	ContentQuality *ContentJudgment  `json:"content_quality,omitempty"`
}

// Deduction records a single penalty applied by the rule engine.
type Deduction struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Points   int    `json:"points"`
}

// ContentJudgment is the structured content-quality rating returned by the
// model provider. Scores are 0-100.
type ContentJudgment struct {
	Clarity   int    `json:"clarity"`
	Depth     int    `json:"depth"`
	Relevance int    `json:"relevance"`
	Overall   int    `json:"overall"`
	Summary   string `json:"summary,omitempty"`
	Model     string `json:"model,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// IssueSeverity classifies how urgent an issue is.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// IssueCategory matches the four scoring dimensions.
type IssueCategory string

const (
	CategoryTechnical   IssueCategory = "technical"
	CategoryContent     IssueCategory = "content"
	CategoryAIReadiness IssueCategory = "ai-readiness"
	CategoryPerformance IssueCategory = "performance"
)

// Issue represents one rule violation on a page. Issues are append-only;
// multiple pages in a job may carry the same code.
type Issue struct {
	ID             string        `json:"id"`
	PageID         string        `json:"page_id"`
	JobID          string        `json:"job_id"`
	Category       IssueCategory `json:"category"`
	Severity       IssueSeverity `json:"severity"`
	Code           string        `json:"code"`
	Message        string        `json:"message"`
	Recommendation string        `json:"recommendation,omitempty"`
	DataJSON       string        `json:"data_json,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// IntegrationProvider identifies a third-party analytics source.
type IntegrationProvider string

const (
	ProviderSearchConsole IntegrationProvider = "search-console"
	ProviderPageSpeed     IntegrationProvider = "page-speed"
	ProviderWebAnalytics  IntegrationProvider = "web-analytics"
	ProviderBehavior      IntegrationProvider = "behavior"
)

// RequiresOAuth reports whether the provider authenticates with user OAuth
// tokens that may need refreshing before use.
func (p IntegrationProvider) RequiresOAuth() bool {
	return p == ProviderSearchConsole || p == ProviderWebAnalytics
}

// Integration holds a project's connection to an analytics provider.
// Tokens are stored encrypted; ConfigJSON carries provider-specific settings
// (property IDs, site URLs and so on).
type Integration struct {
	ID                    string              `json:"id"`
	ProjectID             string              `json:"project_id"`
	Provider              IntegrationProvider `json:"provider"`
	ConfigJSON            string              `json:"config_json,omitempty"`
	AccessTokenEncrypted  string              `json:"-"`
	RefreshTokenEncrypted string              `json:"-"`
	TokenExpiresAt        *time.Time          `json:"token_expires_at,omitempty"`
	IsEnabled             bool                `json:"is_enabled"`
	LastSyncedAt          *time.Time          `json:"last_synced_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// TokenExpired reports whether the stored access token needs a refresh.
func (i *Integration) TokenExpired(now time.Time) bool {
	return i.TokenExpiresAt != nil && !now.Before(*i.TokenExpiresAt)
}

// EnrichmentResult is one external-metric record per (page, provider).
// Re-enrichment appends new rows rather than replacing old ones.
type EnrichmentResult struct {
	ID          string              `json:"id"`
	PageID      string              `json:"page_id"`
	JobID       string              `json:"job_id"`
	Provider    IntegrationProvider `json:"provider"`
	MetricsJSON string              `json:"metrics_json"`
	CreatedAt   time.Time           `json:"created_at"`
}

// CachedJudgment is a content-quality judgment stored by content hash so that
// identical page text is never sent to the model provider twice.
type CachedJudgment struct {
	ContentHash  string    `json:"content_hash"`
	JudgmentJSON string    `json:"judgment_json"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
}
