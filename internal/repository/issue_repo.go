package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteIssueRepository implements IssueRepository for SQLite.
type SQLiteIssueRepository struct {
	db *sql.DB
}

// NewSQLiteIssueRepository creates a new SQLite issue repository.
func NewSQLiteIssueRepository(db *sql.DB) *SQLiteIssueRepository {
	return &SQLiteIssueRepository{db: db}
}

const issueColumns = `id, page_id, job_id, category, severity, code, message, recommendation, data_json, created_at`

func (r *SQLiteIssueRepository) CreateBatch(ctx context.Context, issues []*models.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	placeholders := make([]string, len(issues))
	args := make([]any, 0, len(issues)*10)
	for i, issue := range issues {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			issue.ID, issue.PageID, issue.JobID,
			issue.Category, issue.Severity, issue.Code, issue.Message,
			nullString(issue.Recommendation),
			nullString(issue.DataJSON),
			issue.CreatedAt.Format(time.RFC3339),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO issues (id, page_id, job_id, category, severity, code, message, recommendation, data_json, created_at)
		VALUES %s
	`, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create issues: %w", err)
	}
	return nil
}

func (r *SQLiteIssueRepository) GetByJobID(ctx context.Context, jobID string) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE job_id = ? ORDER BY created_at ASC, id ASC`
	return r.queryIssues(ctx, query, jobID)
}

func (r *SQLiteIssueRepository) GetByPageID(ctx context.Context, pageID string) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE page_id = ? ORDER BY created_at ASC, id ASC`
	return r.queryIssues(ctx, query, pageID)
}

func (r *SQLiteIssueRepository) DeleteByJobID(ctx context.Context, jobID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete issues: %w", err)
	}
	return nil
}

func (r *SQLiteIssueRepository) queryIssues(ctx context.Context, query string, arg any) ([]*models.Issue, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		var issue models.Issue
		var recommendation, dataJSON sql.NullString
		var createdAt string
		if err := rows.Scan(
			&issue.ID, &issue.PageID, &issue.JobID,
			&issue.Category, &issue.Severity, &issue.Code, &issue.Message,
			&recommendation, &dataJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Recommendation = recommendation.String
		issue.DataJSON = dataJSON.String
		issue.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		issues = append(issues, &issue)
	}
	return issues, rows.Err()
}
