// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/regpredict/internal/domain/types"
	"github.com/okian/regpredict/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Predict runs inference on values keyed by feature name.
	Predict(ctx context.Context, values map[string]float64) (float64, error)

	// Health never fails; a missing model is reported as degraded.
	Health(ctx context.Context) Health

	// ModelInfo fails when no model is loaded.
	ModelInfo(ctx context.Context) (ModelInfo, error)

	Name() string
	Version() string
}

// Health mirrors the shape returned by health checks.
type Health = types.Health

// ModelInfo mirrors the shape returned by model introspection.
type ModelInfo = types.ModelInfo

// Server wires HTTP routes for the business API.
type Server struct {
	rootHandler    *RootHandler
	healthHandler  *HealthHandler
	predictHandler *PredictHandler
	modelHandler   *ModelHandler
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxBodyBytes int64
}

// WithMaxBodyBytes caps the size of request bodies read by handlers.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	if deps == nil {
		panic(ErrNilDependencies)
	}
	o := serverOptions{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		rootHandler:    NewRootHandler(deps),
		healthHandler:  NewHealthHandler(deps),
		predictHandler: NewPredictHandler(deps, o.maxBodyBytes),
		modelHandler:   NewModelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Method patterns make the mux
// answer 405 for a known path with the wrong method.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("POST /predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("GET /model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type errorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []fieldDetail `json:"details,omitempty"`
}

// fieldDetail names one rejected request field.
type fieldDetail struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeValidationError(w http.ResponseWriter, msg string, details []fieldDetail) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    "validation_error",
		Message: msg,
		Details: details,
	})
}
