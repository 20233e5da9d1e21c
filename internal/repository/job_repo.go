package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteCrawlJobRepository implements CrawlJobRepository for SQLite.
type SQLiteCrawlJobRepository struct {
	db *sql.DB
}

// NewSQLiteCrawlJobRepository creates a new SQLite crawl job repository.
func NewSQLiteCrawlJobRepository(db *sql.DB) *SQLiteCrawlJobRepository {
	return &SQLiteCrawlJobRepository{db: db}
}

const crawlJobColumns = `id, project_id, status, pages_found, pages_crawled, pages_scored,
	error_message, started_at, completed_at, created_at, updated_at`

func (r *SQLiteCrawlJobRepository) Create(ctx context.Context, job *models.CrawlJob) error {
	query := `
		INSERT INTO crawl_jobs (id, project_id, status, pages_found, pages_crawled, pages_scored,
			error_message, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.ProjectID,
		job.Status,
		job.PagesFound,
		job.PagesCrawled,
		job.PagesScored,
		nullString(job.ErrorMessage),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawl job: %w", err)
	}
	return nil
}

func (r *SQLiteCrawlJobRepository) GetByID(ctx context.Context, id string) (*models.CrawlJob, error) {
	query := `SELECT ` + crawlJobColumns + ` FROM crawl_jobs WHERE id = ?`
	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteCrawlJobRepository) GetByProjectID(ctx context.Context, projectID string, limit, offset int) ([]*models.CrawlJob, error) {
	query := `SELECT ` + crawlJobColumns + ` FROM crawl_jobs WHERE project_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.CrawlJob
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Transition performs a compare-and-set on the status column. started_at is
// stamped on the first move into an active state and completed_at when the
// target is terminal; both survive repeat transitions via COALESCE.
func (r *SQLiteCrawlJobRepository) Transition(ctx context.Context, id string, from []models.JobStatus, to models.JobStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source status")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := make([]string, len(from))
	args := []any{to}

	set := "status = ?"
	if to == models.JobStatusCrawling || to == models.JobStatusScoring {
		set += ", started_at = COALESCE(started_at, ?)"
		args = append(args, now)
	}
	if to.IsTerminal() {
		set += ", completed_at = COALESCE(completed_at, ?)"
		args = append(args, now)
	}
	set += ", updated_at = ?"
	args = append(args, now, id)

	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, s)
	}

	query := fmt.Sprintf("UPDATE crawl_jobs SET %s WHERE id = ? AND status IN (%s)",
		set, strings.Join(placeholders, ","))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition crawl job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SQLiteCrawlJobRepository) Fail(ctx context.Context, id, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE crawl_jobs
		SET status = ?, error_message = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		models.JobStatusFailed, message, now, now, id,
		models.JobStatusComplete, models.JobStatusFailed, models.JobStatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail crawl job: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *SQLiteCrawlJobRepository) Cancel(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE crawl_jobs
		SET status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		models.JobStatusCancelled, now, now, id,
		models.JobStatusComplete, models.JobStatusFailed, models.JobStatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel crawl job: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// UpdateCounters is a single guarded statement so concurrent batch ingests
// never lose increments. pages_found only grows; pages_scored never exceeds
// pages_found; terminal jobs are left untouched.
func (r *SQLiteCrawlJobRepository) UpdateCounters(ctx context.Context, id string, pagesFound, crawledDelta, scoredDelta int) error {
	query := `
		UPDATE crawl_jobs
		SET pages_found = MAX(pages_found, ?),
			pages_crawled = pages_crawled + ?,
			pages_scored = MIN(pages_scored + ?, MAX(pages_found, ?)),
			updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		pagesFound, crawledDelta, scoredDelta, pagesFound,
		time.Now().UTC().Format(time.RFC3339), id,
		models.JobStatusComplete, models.JobStatusFailed, models.JobStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to update crawl job counters: %w", err)
	}
	return nil
}

// MarkStaleRunningJobsFailed fails jobs stuck in crawling or scoring longer
// than maxAge. Used at startup to clean up after a crash or restart.
func (r *SQLiteCrawlJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE crawl_jobs
		SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE status IN (?, ?) AND updated_at < ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.JobStatusFailed,
		"Job terminated: no progress within the stale-job window",
		now, now,
		models.JobStatusCrawling, models.JobStatusScoring,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs as failed: %w", err)
	}

	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteCrawlJobRepository) scanJob(row *sql.Row) (*models.CrawlJob, error) {
	var job models.CrawlJob
	var errorMessage, startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &job.ProjectID, &job.Status,
		&job.PagesFound, &job.PagesCrawled, &job.PagesScored,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan crawl job: %w", err)
	}

	job.ErrorMessage = errorMessage.String
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		job.CompletedAt = &t
	}
	return &job, nil
}

func (r *SQLiteCrawlJobRepository) scanJobFromRows(rows *sql.Rows) (*models.CrawlJob, error) {
	var job models.CrawlJob
	var errorMessage, startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&job.ID, &job.ProjectID, &job.Status,
		&job.PagesFound, &job.PagesCrawled, &job.PagesScored,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan crawl job: %w", err)
	}

	job.ErrorMessage = errorMessage.String
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		job.CompletedAt = &t
	}
	return &job, nil
}

// Helper functions
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
