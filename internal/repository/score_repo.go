package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLitePageScoreRepository implements PageScoreRepository for SQLite.
type SQLitePageScoreRepository struct {
	db *sql.DB
}

// NewSQLitePageScoreRepository creates a new SQLite page score repository.
func NewSQLitePageScoreRepository(db *sql.DB) *SQLitePageScoreRepository {
	return &SQLitePageScoreRepository{db: db}
}

const pageScoreColumns = `id, page_id, job_id, technical, content, ai_readiness, performance,
	overall, grade, detail_json, created_at, updated_at`

// CreateBatch writes all scores in one statement. A page that already has a
// score (rescore path) gets its row replaced wholesale, including the detail.
func (r *SQLitePageScoreRepository) CreateBatch(ctx context.Context, scores []*models.PageScore) error {
	if len(scores) == 0 {
		return nil
	}

	placeholders := make([]string, len(scores))
	args := make([]any, 0, len(scores)*12)
	for i, s := range scores {
		detailJSON, err := json.Marshal(s.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal score detail: %w", err)
		}
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			s.ID, s.PageID, s.JobID,
			s.Technical, s.Content, s.AIReadiness, s.Performance,
			s.Overall, s.Grade, string(detailJSON),
			s.CreatedAt.Format(time.RFC3339),
			s.UpdatedAt.Format(time.RFC3339),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO page_scores (id, page_id, job_id, technical, content, ai_readiness, performance,
			overall, grade, detail_json, created_at, updated_at)
		VALUES %s
		ON CONFLICT(page_id) DO UPDATE SET
			technical = excluded.technical,
			content = excluded.content,
			ai_readiness = excluded.ai_readiness,
			performance = excluded.performance,
			overall = excluded.overall,
			grade = excluded.grade,
			detail_json = excluded.detail_json,
			updated_at = excluded.updated_at
	`, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create page scores: %w", err)
	}
	return nil
}

func (r *SQLitePageScoreRepository) GetByPageID(ctx context.Context, pageID string) (*models.PageScore, error) {
	query := `SELECT ` + pageScoreColumns + ` FROM page_scores WHERE page_id = ?`
	row := r.db.QueryRowContext(ctx, query, pageID)

	score, err := scanPageScore(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page score: %w", err)
	}
	return score, nil
}

func (r *SQLitePageScoreRepository) GetByJobID(ctx context.Context, jobID string) ([]*models.PageScore, error) {
	query := `SELECT ` + pageScoreColumns + ` FROM page_scores WHERE job_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page scores: %w", err)
	}
	defer rows.Close()

	var scores []*models.PageScore
	for rows.Next() {
		score, err := scanPageScore(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// UpdateContentJudgment merges the deferred judgment into the existing row.
// The detail's signals and deductions are preserved; only content_quality,
// the content dimension, the overall score and the grade change. Done in a
// transaction so a concurrent rescore cannot interleave with the read.
func (r *SQLitePageScoreRepository) UpdateContentJudgment(ctx context.Context, pageID string, content, overall int, grade models.Grade, judgment *models.ContentJudgment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var detailJSON sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT detail_json FROM page_scores WHERE page_id = ?`, pageID).Scan(&detailJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no score exists for page %s", pageID)
	}
	if err != nil {
		return fmt.Errorf("failed to read score detail: %w", err)
	}

	var detail models.ScoreDetail
	if detailJSON.Valid && detailJSON.String != "" {
		if err := json.Unmarshal([]byte(detailJSON.String), &detail); err != nil {
			return fmt.Errorf("failed to unmarshal score detail: %w", err)
		}
	}
	detail.ContentQuality = judgment

	merged, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal score detail: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE page_scores
		SET content = ?, overall = ?, grade = ?, detail_json = ?, updated_at = ?
		WHERE page_id = ?
	`, content, overall, grade, string(merged), time.Now().UTC().Format(time.RFC3339), pageID)
	if err != nil {
		return fmt.Errorf("failed to update content judgment: %w", err)
	}

	return tx.Commit()
}

func scanPageScore(scan func(dest ...any) error) (*models.PageScore, error) {
	var score models.PageScore
	var detailJSON sql.NullString
	var createdAt, updatedAt string

	err := scan(
		&score.ID, &score.PageID, &score.JobID,
		&score.Technical, &score.Content, &score.AIReadiness, &score.Performance,
		&score.Overall, &score.Grade, &detailJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if detailJSON.Valid && detailJSON.String != "" {
		if err := json.Unmarshal([]byte(detailJSON.String), &score.Detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score detail: %w", err)
		}
	}
	score.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	score.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &score, nil
}
