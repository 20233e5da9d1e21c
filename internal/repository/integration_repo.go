package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// SQLiteIntegrationRepository implements IntegrationRepository for SQLite.
type SQLiteIntegrationRepository struct {
	db *sql.DB
}

// NewSQLiteIntegrationRepository creates a new SQLite integration repository.
func NewSQLiteIntegrationRepository(db *sql.DB) *SQLiteIntegrationRepository {
	return &SQLiteIntegrationRepository{db: db}
}

const integrationColumns = `id, project_id, provider, config_json, access_token_encrypted,
	refresh_token_encrypted, token_expires_at, is_enabled, last_synced_at, created_at, updated_at`

func (r *SQLiteIntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (id, project_id, provider, config_json, access_token_encrypted,
			refresh_token_encrypted, token_expires_at, is_enabled, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	isEnabled := 0
	if integration.IsEnabled {
		isEnabled = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		integration.ID,
		integration.ProjectID,
		integration.Provider,
		nullString(integration.ConfigJSON),
		nullString(integration.AccessTokenEncrypted),
		nullString(integration.RefreshTokenEncrypted),
		nullTime(integration.TokenExpiresAt),
		isEnabled,
		nullTime(integration.LastSyncedAt),
		integration.CreatedAt.Format(time.RFC3339),
		integration.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

func (r *SQLiteIntegrationRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	integration, err := scanIntegration(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan integration: %w", err)
	}
	return integration, nil
}

func (r *SQLiteIntegrationRepository) GetEnabledByProjectID(ctx context.Context, projectID string) ([]*models.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE project_id = ? AND is_enabled = 1 ORDER BY provider ASC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

func (r *SQLiteIntegrationRepository) UpdateTokens(ctx context.Context, id, accessTokenEncrypted, refreshTokenEncrypted string, expiresAt *time.Time) error {
	query := `
		UPDATE integrations
		SET access_token_encrypted = ?, refresh_token_encrypted = ?, token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullString(accessTokenEncrypted),
		nullString(refreshTokenEncrypted),
		nullTime(expiresAt),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration tokens: %w", err)
	}
	return nil
}

func (r *SQLiteIntegrationRepository) UpdateLastSynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `UPDATE integrations SET last_synced_at = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		syncedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration sync time: %w", err)
	}
	return nil
}

func scanIntegration(scan func(dest ...any) error) (*models.Integration, error) {
	var integration models.Integration
	var configJSON, accessToken, refreshToken, tokenExpiresAt, lastSyncedAt sql.NullString
	var isEnabled int
	var createdAt, updatedAt string

	err := scan(
		&integration.ID, &integration.ProjectID, &integration.Provider,
		&configJSON, &accessToken, &refreshToken, &tokenExpiresAt,
		&isEnabled, &lastSyncedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	integration.ConfigJSON = configJSON.String
	integration.AccessTokenEncrypted = accessToken.String
	integration.RefreshTokenEncrypted = refreshToken.String
	integration.IsEnabled = isEnabled == 1
	integration.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	integration.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if tokenExpiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, tokenExpiresAt.String)
		integration.TokenExpiresAt = &t
	}
	if lastSyncedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSyncedAt.String)
		integration.LastSyncedAt = &t
	}
	return &integration, nil
}
