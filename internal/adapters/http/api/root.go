package api

import "net/http"

// InfoProvider exposes the identity reported by GET /.
type InfoProvider interface {
	Name() string
	Version() string
}

type rootResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Docs    string `json:"docs"`
	Redoc   string `json:"redoc"`
	Version string `json:"version"`
}

// RootHandler handles the landing route.
type RootHandler struct {
	info InfoProvider
}

// NewRootHandler creates a new root handler.
func NewRootHandler(info InfoProvider) *RootHandler {
	return &RootHandler{info: info}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message: "Welcome to the Regression Model Prediction API",
		Name:    h.info.Name(),
		Docs:    "/docs",
		Redoc:   "/redoc",
		Version: h.info.Version(),
	})
}
