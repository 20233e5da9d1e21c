package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
)

// ErrProjectNotFound indicates the referenced project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// JobService handles crawl job lifecycle operations outside of ingestion:
// creation, status lookup and cancellation.
type JobService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(repos *repository.Repositories, logger *slog.Logger) *JobService {
	return &JobService{
		repos:  repos,
		logger: logger.With("component", "jobs"),
	}
}

// CreateJob creates a pending crawl job for a project.
func (s *JobService) CreateJob(ctx context.Context, projectID string) (*models.CrawlJob, error) {
	project, err := s.repos.Project.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	now := time.Now().UTC()
	job := &models.CrawlJob{
		ID:        ulid.Make().String(),
		ProjectID: projectID,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.CrawlJob.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("job created", "job_id", job.ID, "project_id", projectID)
	return job, nil
}

// GetJob returns a job by ID.
func (s *JobService) GetJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	job, err := s.repos.CrawlJob.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// CancelJob cancels a non-terminal job. Cancellation only fences off future
// batches; work already in flight runs to completion.
func (s *JobService) CancelJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	job, err := s.repos.CrawlJob.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrJobNotActive, job.Status)
	}

	if _, err := s.repos.CrawlJob.Cancel(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	updated, err := s.repos.CrawlJob.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload job: %w", err)
	}
	s.logger.Info("job cancelled", "job_id", id)
	return updated, nil
}
