package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteContentCacheRepository implements ContentCacheRepository for SQLite.
// Judgments are keyed by content hash so identical page text is rated once,
// across batches and across jobs.
type SQLiteContentCacheRepository struct {
	db *sql.DB
}

// NewSQLiteContentCacheRepository creates a new SQLite content cache repository.
func NewSQLiteContentCacheRepository(db *sql.DB) *SQLiteContentCacheRepository {
	return &SQLiteContentCacheRepository{db: db}
}

func (r *SQLiteContentCacheRepository) Get(ctx context.Context, contentHash string) (*models.CachedJudgment, error) {
	query := `SELECT content_hash, judgment_json, model, created_at FROM content_score_cache WHERE content_hash = ?`
	row := r.db.QueryRowContext(ctx, query, contentHash)

	var cached models.CachedJudgment
	var model sql.NullString
	var createdAt string
	err := row.Scan(&cached.ContentHash, &cached.JudgmentJSON, &model, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached judgment: %w", err)
	}
	cached.Model = model.String
	cached.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &cached, nil
}

func (r *SQLiteContentCacheRepository) Put(ctx context.Context, judgment *models.CachedJudgment) error {
	query := `
		INSERT INTO content_score_cache (content_hash, judgment_json, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET judgment_json = excluded.judgment_json, model = excluded.model
	`
	_, err := r.db.ExecContext(ctx, query,
		judgment.ContentHash,
		judgment.JudgmentJSON,
		nullString(judgment.Model),
		judgment.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached judgment: %w", err)
	}
	return nil
}
