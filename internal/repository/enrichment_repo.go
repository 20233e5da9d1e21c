package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteEnrichmentRepository implements EnrichmentRepository for SQLite.
type SQLiteEnrichmentRepository struct {
	db *sql.DB
}

// NewSQLiteEnrichmentRepository creates a new SQLite enrichment repository.
func NewSQLiteEnrichmentRepository(db *sql.DB) *SQLiteEnrichmentRepository {
	return &SQLiteEnrichmentRepository{db: db}
}

func (r *SQLiteEnrichmentRepository) CreateBatch(ctx context.Context, results []*models.EnrichmentResult) error {
	if len(results) == 0 {
		return nil
	}

	placeholders := make([]string, len(results))
	args := make([]any, 0, len(results)*6)
	for i, res := range results {
		placeholders[i] = "(?, ?, ?, ?, ?, ?)"
		args = append(args,
			res.ID, res.PageID, res.JobID, res.Provider,
			res.MetricsJSON,
			res.CreatedAt.Format(time.RFC3339),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO enrichment_results (id, page_id, job_id, provider, metrics_json, created_at)
		VALUES %s
	`, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create enrichment results: %w", err)
	}
	return nil
}

func (r *SQLiteEnrichmentRepository) GetByJobID(ctx context.Context, jobID string) ([]*models.EnrichmentResult, error) {
	query := `
		SELECT id, page_id, job_id, provider, metrics_json, created_at
		FROM enrichment_results WHERE job_id = ? ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrichment results: %w", err)
	}
	defer rows.Close()

	var results []*models.EnrichmentResult
	for rows.Next() {
		var res models.EnrichmentResult
		var createdAt string
		if err := rows.Scan(&res.ID, &res.PageID, &res.JobID, &res.Provider, &res.MetricsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrichment result: %w", err)
		}
		res.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		results = append(results, &res)
	}
	return results, rows.Err()
}
