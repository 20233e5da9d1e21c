package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/service"
)

// JobHandler handles crawl job endpoints.
type JobHandler struct {
	jobSvc    *service.JobService
	ingestSvc *service.IngestService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobSvc *service.JobService, ingestSvc *service.IngestService) *JobHandler {
	return &JobHandler{
		jobSvc:    jobSvc,
		ingestSvc: ingestSvc,
	}
}

// mapServiceError translates service sentinels to HTTP errors.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return huma.Error404NotFound("crawl job not found")
	case errors.Is(err, service.ErrProjectNotFound):
		return huma.Error404NotFound("project not found")
	case errors.Is(err, service.ErrInvalidBatch):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrJobNotActive):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

// CreateJobInput represents a crawl job creation request.
type CreateJobInput struct {
	Body struct {
		ProjectID string `json:"project_id" minLength:"1" doc:"Project the job belongs to"`
	}
}

// JobOutput wraps a crawl job response.
type JobOutput struct {
	Status int
	Body   *models.CrawlJob
}

// CreateJob creates a pending crawl job for a project.
func (h *JobHandler) CreateJob(ctx context.Context, input *CreateJobInput) (*JobOutput, error) {
	job, err := h.jobSvc.CreateJob(ctx, input.Body.ProjectID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &JobOutput{Status: 201, Body: job}, nil
}

// GetJobInput represents a job lookup request.
type GetJobInput struct {
	ID string `path:"id" doc:"Crawl job ID"`
}

// GetJob returns a job's status and counters.
func (h *JobHandler) GetJob(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := h.jobSvc.GetJob(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &JobOutput{Status: 200, Body: job}, nil
}

// CancelJob cancels a non-terminal job. Only future batches are fenced off;
// work already in flight runs to completion.
func (h *JobHandler) CancelJob(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := h.jobSvc.CancelJob(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &JobOutput{Status: 200, Body: job}, nil
}

// IngestBatchInput represents one crawler batch for a job.
type IngestBatchInput struct {
	ID   string `path:"id" doc:"Crawl job ID"`
	Body service.BatchInput
}

// IngestBatch accepts one batch of crawled pages, scores them synchronously
// and returns the updated job.
func (h *JobHandler) IngestBatch(ctx context.Context, input *IngestBatchInput) (*JobOutput, error) {
	job, err := h.ingestSvc.IngestBatch(ctx, input.ID, &input.Body)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &JobOutput{Status: 200, Body: job}, nil
}

// RescoreJobOutput reports how many pages a rescore touched.
type RescoreJobOutput struct {
	Body struct {
		JobID    string `json:"job_id"`
		Rescored int    `json:"rescored"`
	}
}

// RescoreJob re-runs the rule engine over a job's stored pages.
func (h *JobHandler) RescoreJob(ctx context.Context, input *GetJobInput) (*RescoreJobOutput, error) {
	n, err := h.ingestSvc.RescoreJob(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &RescoreJobOutput{}
	out.Body.JobID = input.ID
	out.Body.Rescored = n
	return out, nil
}
