package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250301-000000",
		Description: "Initial schema",
		Up: []string{
			// Projects - one per audited site
			`CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				domain TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_projects_domain ON projects(domain)`,

			// Crawl jobs - one audit run per project
			`CREATE TABLE IF NOT EXISTS crawl_jobs (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				pages_found INTEGER DEFAULT 0,
				pages_crawled INTEGER DEFAULT 0,
				pages_scored INTEGER DEFAULT 0,
				error_message TEXT,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_crawl_jobs_project_id ON crawl_jobs(project_id)`,
			`CREATE INDEX IF NOT EXISTS idx_crawl_jobs_status ON crawl_jobs(status)`,

			// Pages - one per crawled URL in a job
			`CREATE TABLE IF NOT EXISTS pages (
				id TEXT PRIMARY KEY,
				job_id TEXT NOT NULL,
				url TEXT NOT NULL,
				canonical_url TEXT,
				status_code INTEGER DEFAULT 0,
				title TEXT,
				meta_description TEXT,
				word_count INTEGER DEFAULT 0,
				content_hash TEXT,
				html_key TEXT,
				perf_audit_key TEXT,
				created_at TEXT NOT NULL,
				UNIQUE(job_id, url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pages_job_id ON pages(job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages(content_hash)`,

			// Page scores - one per page
			`CREATE TABLE IF NOT EXISTS page_scores (
				id TEXT PRIMARY KEY,
				page_id TEXT UNIQUE NOT NULL,
				job_id TEXT NOT NULL,
				technical INTEGER NOT NULL,
				content INTEGER NOT NULL,
				ai_readiness INTEGER NOT NULL,
				performance INTEGER NOT NULL,
				overall INTEGER NOT NULL,
				grade TEXT NOT NULL,
				detail_json TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_page_scores_job_id ON page_scores(job_id)`,

			// Issues - rule violations, append-only
			`CREATE TABLE IF NOT EXISTS issues (
				id TEXT PRIMARY KEY,
				page_id TEXT NOT NULL,
				job_id TEXT NOT NULL,
				category TEXT NOT NULL,
				severity TEXT NOT NULL,
				code TEXT NOT NULL,
				message TEXT NOT NULL,
				recommendation TEXT,
				data_json TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_issues_job_id ON issues(job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_issues_page_id ON issues(page_id)`,
			`CREATE INDEX IF NOT EXISTS idx_issues_code ON issues(code)`,

			// Enrichment results - per (page, provider), re-runs append
			`CREATE TABLE IF NOT EXISTS enrichment_results (
				id TEXT PRIMARY KEY,
				page_id TEXT NOT NULL,
				job_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				metrics_json TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_enrichment_results_job_id ON enrichment_results(job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_enrichment_results_page_id ON enrichment_results(page_id)`,

			// Integrations - a project's analytics provider connections
			`CREATE TABLE IF NOT EXISTS integrations (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				config_json TEXT,
				access_token_encrypted TEXT,
				refresh_token_encrypted TEXT,
				token_expires_at TEXT,
				is_enabled INTEGER DEFAULT 1,
				last_synced_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE(project_id, provider)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_integrations_project_id ON integrations(project_id)`,

			// Content score cache - judgments keyed by content hash
			`CREATE TABLE IF NOT EXISTS content_score_cache (
				content_hash TEXT PRIMARY KEY,
				judgment_json TEXT NOT NULL,
				model TEXT,
				created_at TEXT NOT NULL
			)`,
		},
	})
}
