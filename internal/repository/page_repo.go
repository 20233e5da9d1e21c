package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLitePageRepository implements PageRepository for SQLite.
type SQLitePageRepository struct {
	db *sql.DB
}

// NewSQLitePageRepository creates a new SQLite page repository.
func NewSQLitePageRepository(db *sql.DB) *SQLitePageRepository {
	return &SQLitePageRepository{db: db}
}

const pageColumns = `id, job_id, url, canonical_url, status_code, title, meta_description,
	word_count, content_hash, html_key, perf_audit_key, created_at`

// CreateBatch inserts all pages in one statement. A (job, url) pair already
// present keeps its original id and created_at but takes the new crawl data,
// so a URL re-sent in a later batch reflects the latest fetch.
func (r *SQLitePageRepository) CreateBatch(ctx context.Context, pages []*models.Page) error {
	if len(pages) == 0 {
		return nil
	}

	placeholders := make([]string, len(pages))
	args := make([]any, 0, len(pages)*12)
	for i, p := range pages {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			p.ID, p.JobID, p.URL,
			nullString(p.CanonicalURL),
			p.StatusCode,
			nullString(p.Title),
			nullString(p.MetaDescription),
			p.WordCount,
			nullString(p.ContentHash),
			nullString(p.HTMLKey),
			nullString(p.PerfAuditKey),
			p.CreatedAt.Format(time.RFC3339),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO pages (id, job_id, url, canonical_url, status_code, title, meta_description,
			word_count, content_hash, html_key, perf_audit_key, created_at)
		VALUES %s
		ON CONFLICT(job_id, url) DO UPDATE SET
			canonical_url = excluded.canonical_url,
			status_code = excluded.status_code,
			title = excluded.title,
			meta_description = excluded.meta_description,
			word_count = excluded.word_count,
			content_hash = excluded.content_hash,
			html_key = excluded.html_key,
			perf_audit_key = excluded.perf_audit_key
	`, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create pages: %w", err)
	}
	return nil
}

func (r *SQLitePageRepository) GetByID(ctx context.Context, id string) (*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	page, err := scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}
	return page, nil
}

func (r *SQLitePageRepository) GetByJobID(ctx context.Context, jobID string) ([]*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE job_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(scan func(dest ...any) error) (*models.Page, error) {
	var page models.Page
	var canonicalURL, title, metaDescription, contentHash, htmlKey, perfAuditKey sql.NullString
	var createdAt string

	err := scan(
		&page.ID, &page.JobID, &page.URL, &canonicalURL, &page.StatusCode,
		&title, &metaDescription, &page.WordCount,
		&contentHash, &htmlKey, &perfAuditKey, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	page.CanonicalURL = canonicalURL.String
	page.Title = title.String
	page.MetaDescription = metaDescription.String
	page.ContentHash = contentHash.String
	page.HTMLKey = htmlKey.String
	page.PerfAuditKey = perfAuditKey.String
	page.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &page, nil
}
