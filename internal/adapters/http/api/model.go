package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/regpredict/internal/app"
)

// ModelProvider describes the loaded model.
type ModelProvider interface {
	ModelInfo(ctx context.Context) (ModelInfo, error)
}

// ModelHandler handles model introspection requests.
type ModelHandler struct {
	provider ModelProvider
}

// NewModelHandler creates a new model handler.
func NewModelHandler(provider ModelProvider) *ModelHandler {
	return &ModelHandler{provider: provider}
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.provider.ModelInfo(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, info)
	case errors.Is(err, service.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
