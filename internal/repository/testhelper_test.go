package repository

import (
	"database/sql"
	"testing"

	"github.com/lsendel/LLMRank-app-sub001/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// InsertTestJob is a helper to insert a crawl job directly.
func InsertTestJob(t *testing.T, db *sql.DB, id, projectID, status string) {
	t.Helper()
	query := `
		INSERT INTO crawl_jobs (id, project_id, status, created_at, updated_at)
		VALUES (?, ?, ?, datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, projectID, status); err != nil {
		t.Fatalf("failed to insert test job: %v", err)
	}
}

// InsertTestPage is a helper to insert a page directly.
func InsertTestPage(t *testing.T, db *sql.DB, id, jobID, url, contentHash string) {
	t.Helper()
	query := `
		INSERT INTO pages (id, job_id, url, status_code, word_count, content_hash, created_at)
		VALUES (?, ?, ?, 200, 500, ?, datetime('now'))
	`
	if _, err := db.Exec(query, id, jobID, url, contentHash); err != nil {
		t.Fatalf("failed to insert test page: %v", err)
	}
}

// InsertTestIntegration is a helper to insert an integration directly.
func InsertTestIntegration(t *testing.T, db *sql.DB, id, projectID, provider string, enabled bool) {
	t.Helper()
	isEnabled := 0
	if enabled {
		isEnabled = 1
	}
	query := `
		INSERT INTO integrations (id, project_id, provider, is_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, projectID, provider, isEnabled); err != nil {
		t.Fatalf("failed to insert test integration: %v", err)
	}
}
