package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteProjectRepository implements ProjectRepository for SQLite.
type SQLiteProjectRepository struct {
	db *sql.DB
}

// NewSQLiteProjectRepository creates a new SQLite project repository.
func NewSQLiteProjectRepository(db *sql.DB) *SQLiteProjectRepository {
	return &SQLiteProjectRepository{db: db}
}

func (r *SQLiteProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (id, name, domain, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Domain,
		project.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, name, domain, created_at FROM projects WHERE id = ?`
	return r.scanProject(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteProjectRepository) GetByDomain(ctx context.Context, domain string) (*models.Project, error) {
	query := `SELECT id, name, domain, created_at FROM projects WHERE domain = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanProject(r.db.QueryRowContext(ctx, query, domain))
}

func (r *SQLiteProjectRepository) List(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	query := `SELECT id, name, domain, created_at FROM projects ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Domain, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteProjectRepository) scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Domain, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}
