package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/config"
	"github.com/lsendel/LLMRank-app-sub001/internal/crypto"
	"github.com/lsendel/LLMRank-app-sub001/internal/integrations"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
	"github.com/lsendel/LLMRank-app-sub001/internal/scoring"
	"github.com/lsendel/LLMRank-app-sub001/internal/tasks"
)

// Services bundles the service layer for wiring into handlers.
type Services struct {
	Job        *JobService
	Ingest     *IngestService
	Scorer     *ContentScorer
	Enrichment *EnrichmentService
	Storage    *StorageService
}

// NewServices wires the full service layer from configuration.
func NewServices(cfg *config.Config, repos *repository.Repositories, runner *tasks.Runner, logger *slog.Logger) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	storage, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	engine := scoring.NewEngine(cfg.Weights)
	modelClient := NewModelClient(cfg, logger)

	providerClient := &http.Client{Timeout: 30 * time.Second}
	enrichment := NewEnrichmentService(
		repos,
		integrations.DefaultFetchers(providerClient),
		integrations.NewTokenRefresher(providerClient, cfg.OAuthTokenURL),
		encryptor,
		cfg.AnalyticsConcurrency,
		logger,
	)

	scorer := NewContentScorer(
		repos,
		storage,
		modelClient,
		engine,
		cfg.ContentConcurrency,
		cfg.MinContentWords,
		logger,
	)

	return &Services{
		Job:        NewJobService(repos, logger),
		Ingest:     NewIngestService(repos, engine, runner, scorer, enrichment, logger),
		Scorer:     scorer,
		Enrichment: enrichment,
		Storage:    storage,
	}, nil
}
