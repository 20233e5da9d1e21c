// Package main is the entry point for the llmrank-api server. It ingests
// crawler batches, scores pages, runs the deferred content-quality pass and
// enriches finished jobs with third-party analytics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/lsendel/LLMRank-app-sub001/internal/config"
	"github.com/lsendel/LLMRank-app-sub001/internal/database"
	"github.com/lsendel/LLMRank-app-sub001/internal/http/handlers"
	"github.com/lsendel/LLMRank-app-sub001/internal/logging"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
	"github.com/lsendel/LLMRank-app-sub001/internal/service"
	"github.com/lsendel/LLMRank-app-sub001/internal/tasks"
	"github.com/lsendel/LLMRank-app-sub001/internal/version"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting llmrank-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	// Jobs left crawling or scoring by a previous server run will never
	// receive their remaining batches; fail them so clients see a terminal
	// state instead of a job stuck forever.
	staleCount, err := repos.CrawlJob.MarkStaleRunningJobsFailed(context.Background(), cfg.StaleJobAge)
	if err != nil {
		logger.Warn("failed to clean up stale jobs", "error", err)
	} else if staleCount > 0 {
		logger.Info("failed stale running jobs", "count", staleCount)
	}

	runner := tasks.NewRunner(logger, cfg.TaskCapacity, cfg.TaskTimeout)

	services, err := service.NewServices(cfg, repos, runner, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Crawler batches can be large but bounded; reject anything bigger.
	router.Use(middleware.RequestSize(8 * 1024 * 1024))
	router.Use(httprate.LimitByIP(300, time.Minute))

	humaConfig := huma.DefaultConfig("LLMRank API", v.Version)
	humaConfig.Info.Description = "Crawl-result ingestion, scoring and enrichment pipeline for SEO and AI-readiness audits."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	api := humachi.New(router, humaConfig)

	// K8s probes, hidden from docs
	hiddenConfig := huma.DefaultConfig("LLMRank API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	jobHandler := handlers.NewJobHandler(services.Job, services.Ingest)
	huma.Post(api, "/api/v1/jobs", jobHandler.CreateJob)
	huma.Get(api, "/api/v1/jobs/{id}", jobHandler.GetJob)
	huma.Post(api, "/api/v1/jobs/{id}/cancel", jobHandler.CancelJob)
	huma.Post(api, "/api/v1/jobs/{id}/batches", jobHandler.IngestBatch)
	huma.Post(api, "/api/v1/jobs/{id}/rescore", jobHandler.RescoreJob)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		// Drain scheduled content scoring and enrichment so responses that
		// already went out do not lose their followup work.
		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Warn("background tasks interrupted", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
