package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/crypto"
	"github.com/lsendel/LLMRank-app-sub001/internal/integrations"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
)

// scriptedFetcher is a scripted integrations.Fetcher.
type scriptedFetcher struct {
	mu       sync.Mutex
	provider models.IntegrationProvider
	metrics  []integrations.PageMetrics
	err      error
	calls    int
	gotToken string
}

func (f *scriptedFetcher) Provider() models.IntegrationProvider { return f.provider }

func (f *scriptedFetcher) Fetch(_ context.Context, fc integrations.FetchContext) ([]integrations.PageMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotToken = fc.AccessToken
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics, nil
}

func testEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	key := make([]byte, 32)
	copy(key, "0123456789abcdef0123456789abcdef")
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

func seedEnrichmentJob(t *testing.T, repos *repository.Repositories, urls ...string) (*models.Project, *models.CrawlJob) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	project := &models.Project{ID: ulid.Make().String(), Name: "Example", Domain: "example.com", CreatedAt: now}
	if err := repos.Project.Create(ctx, project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	job := &models.CrawlJob{
		ID: ulid.Make().String(), ProjectID: project.ID,
		Status: models.JobStatusComplete, CreatedAt: now, UpdatedAt: now,
	}
	if err := repos.CrawlJob.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	pages := make([]*models.Page, len(urls))
	for i, u := range urls {
		pages[i] = &models.Page{ID: ulid.Make().String(), JobID: job.ID, URL: u, StatusCode: 200, CreatedAt: now}
	}
	if err := repos.Page.CreateBatch(ctx, pages); err != nil {
		t.Fatalf("failed to create pages: %v", err)
	}
	return project, job
}

func seedIntegration(t *testing.T, repos *repository.Repositories, enc *crypto.Encryptor, projectID string, provider models.IntegrationProvider, expiresAt *time.Time) *models.Integration {
	t.Helper()
	accessEnc, err := enc.Encrypt("stale-access")
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	refreshEnc, err := enc.Encrypt("refresh-1")
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	now := time.Now().UTC()
	integ := &models.Integration{
		ID:                    ulid.Make().String(),
		ProjectID:             projectID,
		Provider:              provider,
		ConfigJSON:            `{"client_id":"client-1","client_secret":"secret-1"}`,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiresAt:        expiresAt,
		IsEnabled:             true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := repos.Integration.Create(context.Background(), integ); err != nil {
		t.Fatalf("failed to create integration: %v", err)
	}
	return integ
}

func TestEnrichJobNoIntegrations(t *testing.T) {
	repos, st := newFakeRepos()
	fetcher := &scriptedFetcher{provider: models.ProviderPageSpeed}
	svc := NewEnrichmentService(repos,
		map[models.IntegrationProvider]integrations.Fetcher{models.ProviderPageSpeed: fetcher},
		integrations.NewTokenRefresher(nil, "http://localhost:0"),
		testEncryptor(t), 2, testLogger())

	_, job := seedEnrichmentJob(t, repos, "https://example.com/")

	if err := svc.EnrichJob(context.Background(), job.ID); err != nil {
		t.Fatalf("EnrichJob failed: %v", err)
	}
	if fetcher.calls != 0 {
		t.Error("no integrations must mean no provider traffic")
	}
	if st.enrichmentBatchCalls != 0 {
		t.Error("no integrations must mean no enrichment rows")
	}
}

func TestEnrichJobRefreshesExpiredToken(t *testing.T) {
	refreshCalls := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-access", "refresh_token": "refresh-2", "expires_in": 3600,
		})
	}))
	defer tokenServer.Close()

	repos, st := newFakeRepos()
	enc := testEncryptor(t)
	fetcher := &scriptedFetcher{provider: models.ProviderSearchConsole}
	svc := NewEnrichmentService(repos,
		map[models.IntegrationProvider]integrations.Fetcher{models.ProviderSearchConsole: fetcher},
		integrations.NewTokenRefresher(tokenServer.Client(), tokenServer.URL),
		enc, 2, testLogger())

	project, job := seedEnrichmentJob(t, repos, "https://example.com/")
	expired := time.Now().UTC().Add(-time.Hour)
	integ := seedIntegration(t, repos, enc, project.ID, models.ProviderSearchConsole, &expired)

	if err := svc.EnrichJob(context.Background(), job.ID); err != nil {
		t.Fatalf("EnrichJob failed: %v", err)
	}

	if refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshCalls)
	}
	if fetcher.gotToken != "fresh-access" {
		t.Errorf("fetcher token = %q, want the refreshed one", fetcher.gotToken)
	}
	if st.tokenUpdates != 1 {
		t.Errorf("token updates = %d, want 1", st.tokenUpdates)
	}

	stored, _ := repos.Integration.GetByID(context.Background(), integ.ID)
	gotAccess, err := enc.Decrypt(stored.AccessTokenEncrypted)
	if err != nil {
		t.Fatalf("failed to decrypt stored token: %v", err)
	}
	if gotAccess != "fresh-access" {
		t.Errorf("stored access token = %q", gotAccess)
	}
	gotRefresh, _ := enc.Decrypt(stored.RefreshTokenEncrypted)
	if gotRefresh != "refresh-2" {
		t.Errorf("stored refresh token = %q, want rotated", gotRefresh)
	}
}

func TestEnrichJobValidTokenNotRefreshed(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("valid token must not hit the refresh endpoint")
	}))
	defer tokenServer.Close()

	repos, _ := newFakeRepos()
	enc := testEncryptor(t)
	fetcher := &scriptedFetcher{provider: models.ProviderSearchConsole}
	svc := NewEnrichmentService(repos,
		map[models.IntegrationProvider]integrations.Fetcher{models.ProviderSearchConsole: fetcher},
		integrations.NewTokenRefresher(tokenServer.Client(), tokenServer.URL),
		enc, 2, testLogger())

	project, job := seedEnrichmentJob(t, repos, "https://example.com/")
	valid := time.Now().UTC().Add(time.Hour)
	seedIntegration(t, repos, enc, project.ID, models.ProviderSearchConsole, &valid)

	if err := svc.EnrichJob(context.Background(), job.ID); err != nil {
		t.Fatalf("EnrichJob failed: %v", err)
	}
	if fetcher.gotToken != "stale-access" {
		t.Errorf("fetcher token = %q, want the stored one", fetcher.gotToken)
	}
}

func TestEnrichJobFailureIsolation(t *testing.T) {
	repos, st := newFakeRepos()
	enc := testEncryptor(t)
	broken := &scriptedFetcher{provider: models.ProviderPageSpeed, err: errors.New("quota exceeded")}
	working := &scriptedFetcher{
		provider: models.ProviderBehavior,
		metrics: []integrations.PageMetrics{
			{URL: "https://example.com/", Metrics: map[string]any{"sessions": 10}},
		},
	}
	svc := NewEnrichmentService(repos,
		map[models.IntegrationProvider]integrations.Fetcher{
			models.ProviderPageSpeed: broken,
			models.ProviderBehavior:  working,
		},
		integrations.NewTokenRefresher(nil, "http://localhost:0"),
		enc, 2, testLogger())

	project, job := seedEnrichmentJob(t, repos, "https://example.com/")
	seedIntegration(t, repos, enc, project.ID, models.ProviderPageSpeed, nil)
	seedIntegration(t, repos, enc, project.ID, models.ProviderBehavior, nil)

	if err := svc.EnrichJob(context.Background(), job.ID); err != nil {
		t.Fatalf("EnrichJob failed: %v", err)
	}

	if len(st.enrichments) != 1 {
		t.Fatalf("enrichment rows = %d, want 1", len(st.enrichments))
	}
	if st.enrichments[0].Provider != models.ProviderBehavior {
		t.Errorf("row provider = %s", st.enrichments[0].Provider)
	}
	if st.lastSyncedUpdates != 1 {
		t.Errorf("last_synced updates = %d, want 1 (only the success)", st.lastSyncedUpdates)
	}
}

func TestEnrichJobMapsRowsByExactURL(t *testing.T) {
	repos, st := newFakeRepos()
	enc := testEncryptor(t)
	fetcher := &scriptedFetcher{
		provider: models.ProviderBehavior,
		metrics: []integrations.PageMetrics{
			{URL: "https://example.com/pricing", Metrics: map[string]any{"sessions": 5}},
			{URL: "https://example.com/unknown", Metrics: map[string]any{"sessions": 9}},
		},
	}
	svc := NewEnrichmentService(repos,
		map[models.IntegrationProvider]integrations.Fetcher{models.ProviderBehavior: fetcher},
		integrations.NewTokenRefresher(nil, "http://localhost:0"),
		enc, 2, testLogger())

	project, job := seedEnrichmentJob(t, repos, "https://example.com/", "https://example.com/pricing")
	seedIntegration(t, repos, enc, project.ID, models.ProviderBehavior, nil)

	if err := svc.EnrichJob(context.Background(), job.ID); err != nil {
		t.Fatalf("EnrichJob failed: %v", err)
	}

	if len(st.enrichments) != 1 {
		t.Fatalf("enrichment rows = %d, want 1 (unknown URL dropped)", len(st.enrichments))
	}
	if st.enrichmentBatchCalls != 1 {
		t.Errorf("enrichment batch inserts = %d, want 1", st.enrichmentBatchCalls)
	}
}

func TestEnrichJobNotFound(t *testing.T) {
	repos, _ := newFakeRepos()
	svc := NewEnrichmentService(repos, nil,
		integrations.NewTokenRefresher(nil, "http://localhost:0"),
		testEncryptor(t), 2, testLogger())

	if err := svc.EnrichJob(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}
