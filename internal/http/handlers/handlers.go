// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aiolosmedia/estimateai-api/internal/repository"
	"github.com/aiolosmedia/estimateai-api/internal/version"
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

// ProbeOutput represents a Kubernetes probe response.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez is the liveness probe.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzHandler serves the readiness probe, which requires a working database.
// It reads the store on every probe so a runtime store swap is reflected.
type ReadyzHandler struct {
	store *repository.Store
}

// NewReadyzHandler creates a readiness probe handler.
func NewReadyzHandler(store *repository.Store) *ReadyzHandler {
	return &ReadyzHandler{store: store}
}

// Readyz reports ready once the database answers a ping.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	if err := h.store.DB().PingContext(ctx); err != nil {
		return nil, huma.Error503ServiceUnavailable("database not ready: " + err.Error())
	}
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}
