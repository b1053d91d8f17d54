package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
)

// healthCheckTimeout bounds the datasource check in /health.
const healthCheckTimeout = 2 * time.Second

// Pinger reports whether the datasource is reachable.
type Pinger interface {
	TestConnection(ctx context.Context) error
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Datasource string `json:"datasource,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Dialect     string `json:"dialect"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	pinger Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. pinger may be nil, in which
// case /health reports the process only.
func NewHealthHandler(cfg *config.Config, pinger Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pinger: pinger, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns 503 when the datasource cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.pinger.TestConnection(ctx); err != nil {
			h.logger.Warn("Datasource health check failed", logging.Err(err))
			response.Status = "degraded"
			response.Datasource = logging.SanitizeError(err)
			status = http.StatusServiceUnavailable
		} else {
			response.Datasource = "ok"
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-sqlagent",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Dialect:     string(h.cfg.Dialect()),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
