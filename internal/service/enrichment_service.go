package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/concurrent"
	"github.com/lsendel/LLMRank-app-sub001/internal/crypto"
	"github.com/lsendel/LLMRank-app-sub001/internal/integrations"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
)

// EnrichmentService runs after a job's final batch: for every enabled
// integration on the project it fetches external metrics, maps them onto the
// job's pages and appends enrichment rows. One failing integration never
// blocks the others.
type EnrichmentService struct {
	repos       *repository.Repositories
	fetchers    map[models.IntegrationProvider]integrations.Fetcher
	refresher   *integrations.TokenRefresher
	encryptor   *crypto.Encryptor
	concurrency int
	logger      *slog.Logger
}

// NewEnrichmentService creates a new enrichment service.
func NewEnrichmentService(
	repos *repository.Repositories,
	fetchers map[models.IntegrationProvider]integrations.Fetcher,
	refresher *integrations.TokenRefresher,
	encryptor *crypto.Encryptor,
	concurrency int,
	logger *slog.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		repos:       repos,
		fetchers:    fetchers,
		refresher:   refresher,
		encryptor:   encryptor,
		concurrency: concurrency,
		logger:      logger.With("component", "enrichment"),
	}
}

// fetchOutcome is one integration's result within an enrichment run.
type fetchOutcome struct {
	integration *models.Integration
	metrics     []integrations.PageMetrics
}

// EnrichJob runs enrichment for a finished job. Projects without enabled
// integrations return immediately without any provider traffic.
func (s *EnrichmentService) EnrichJob(ctx context.Context, jobID string) error {
	job, err := s.repos.CrawlJob.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}

	project, err := s.repos.Project.GetByID(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found for job %s", job.ProjectID, jobID)
	}

	enabled, err := s.repos.Integration.GetEnabledByProjectID(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load integrations: %w", err)
	}
	if len(enabled) == 0 {
		s.logger.Debug("no enabled integrations, skipping enrichment", "job_id", jobID)
		return nil
	}

	pages, err := s.repos.Page.GetByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	if len(pages) == 0 {
		return nil
	}
	urls := make([]string, len(pages))
	pageIDByURL := make(map[string]string, len(pages))
	for i, p := range pages {
		urls[i] = p.URL
		pageIDByURL[p.URL] = p.ID
	}

	outcomes := concurrent.MapSettle(ctx, enabled, s.concurrency, func(ctx context.Context, integ *models.Integration) (*fetchOutcome, error) {
		metrics, err := s.fetchIntegration(ctx, integ, project.Domain, urls)
		if err != nil {
			return nil, err
		}
		return &fetchOutcome{integration: integ, metrics: metrics}, nil
	}, func(integ *models.Integration, err error) {
		s.logger.Warn("integration fetch failed",
			"job_id", jobID, "integration_id", integ.ID, "provider", integ.Provider, "error", err)
	})

	now := time.Now().UTC()
	var results []*models.EnrichmentResult
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		succeeded++
		for _, pm := range outcome.metrics {
			pageID, ok := pageIDByURL[pm.URL]
			if !ok {
				continue
			}
			metricsJSON, err := json.Marshal(pm.Metrics)
			if err != nil {
				continue
			}
			results = append(results, &models.EnrichmentResult{
				ID:          ulid.Make().String(),
				PageID:      pageID,
				JobID:       jobID,
				Provider:    outcome.integration.Provider,
				MetricsJSON: string(metricsJSON),
				CreatedAt:   now,
			})
		}
		if err := s.repos.Integration.UpdateLastSynced(ctx, outcome.integration.ID, now); err != nil {
			s.logger.Warn("failed to record sync time",
				"integration_id", outcome.integration.ID, "error", err)
		}
	}

	if len(results) > 0 {
		if err := s.repos.Enrichment.CreateBatch(ctx, results); err != nil {
			return fmt.Errorf("failed to persist enrichment results: %w", err)
		}
	}

	s.logger.Info("enrichment finished",
		"job_id", jobID,
		"integrations", len(enabled),
		"succeeded", succeeded,
		"rows", len(results),
	)
	return nil
}

// fetchIntegration resolves credentials for one integration and runs its
// fetcher. OAuth tokens are refreshed and re-persisted before use when the
// stored access token has expired.
func (s *EnrichmentService) fetchIntegration(ctx context.Context, integ *models.Integration, domain string, urls []string) ([]integrations.PageMetrics, error) {
	fetcher, ok := s.fetchers[integ.Provider]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for provider %s", integ.Provider)
	}

	var accessToken string
	if integ.Provider.RequiresOAuth() {
		token, err := s.resolveAccessToken(ctx, integ)
		if err != nil {
			return nil, err
		}
		accessToken = token
	}

	return fetcher.Fetch(ctx, integrations.FetchContext{
		Domain:      domain,
		URLs:        urls,
		AccessToken: accessToken,
		ConfigJSON:  integ.ConfigJSON,
	})
}

func (s *EnrichmentService) resolveAccessToken(ctx context.Context, integ *models.Integration) (string, error) {
	if !integ.TokenExpired(time.Now().UTC()) {
		token, err := s.encryptor.Decrypt(integ.AccessTokenEncrypted)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if token != "" {
			return token, nil
		}
		// No stored access token yet; fall through to a refresh.
	}

	refreshToken, err := s.encryptor.Decrypt(integ.RefreshTokenEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	var creds integrations.OAuthCredentials
	if integ.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(integ.ConfigJSON), &creds); err != nil {
			return "", fmt.Errorf("invalid integration config: %w", err)
		}
	}

	token, err := s.refresher.Refresh(ctx, creds, refreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	accessEnc, err := s.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc := integ.RefreshTokenEncrypted
	if token.RefreshToken != "" {
		refreshEnc, err = s.encryptor.Encrypt(token.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	var expiresAt *time.Time
	if !token.ExpiresAt.IsZero() {
		expiresAt = &token.ExpiresAt
	}
	if err := s.repos.Integration.UpdateTokens(ctx, integ.ID, accessEnc, refreshEnc, expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	return token.AccessToken, nil
}
