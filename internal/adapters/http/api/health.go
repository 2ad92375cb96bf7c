package api

import (
	"context"
	"net/http"
)

// HealthProvider reports service health.
type HealthProvider interface {
	Health(ctx context.Context) Health
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	provider HealthProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(provider HealthProvider) *HealthHandler {
	return &HealthHandler{provider: provider}
}

// HandleHealth handles GET /health requests. It answers 200 in both the
// healthy and degraded states.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Health(r.Context()))
}
