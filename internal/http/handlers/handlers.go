// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Version
	return out, nil
}

// LivezOutput represents the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez is the Kubernetes liveness probe.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzHandler checks readiness dependencies.
type ReadyzHandler struct {
	db *sql.DB
}

// NewReadyzHandler creates a readiness handler.
func NewReadyzHandler(db *sql.DB) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// ReadyzOutput represents the readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

// Readyz is the Kubernetes readiness probe. It fails while the database is
// unreachable.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if err := h.db.PingContext(ctx); err != nil {
		return nil, huma.Error503ServiceUnavailable("database unreachable")
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ready"
	out.Body.Database = "ok"
	return out, nil
}
