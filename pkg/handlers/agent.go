package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/services"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/tools"
)

// QueryAgent is the part of services.Agent the HTTP API drives.
type QueryAgent interface {
	QueryWithOptions(ctx context.Context, question string, opts services.QueryOptions) *models.QueryResult
	Memory() *services.Memory
	Schema(ctx context.Context) (*models.SchemaContext, error)
	Tools() []tools.Info
	UseTool(ctx context.Context, name string, args map[string]any) (*tools.Result, error)
	Dialect() string
}

// SchemaRefresher reloads the schema snapshot on demand.
type SchemaRefresher interface {
	Refresh(ctx context.Context) (*models.SchemaContext, error)
}

// AskRequest is the body of POST /api/query.
type AskRequest struct {
	Question    string `json:"question"`
	SkipSummary bool   `json:"skip_summary,omitempty"`
}

// MemoryResponse lists the agent's recent queries, oldest first.
type MemoryResponse struct {
	Entries []models.MemoryEntry `json:"entries"`
	Size    int                  `json:"size"`
}

// ToolsResponse lists the registered tools.
type ToolsResponse struct {
	Tools []tools.Info `json:"tools"`
}

// SchemaResponse is the schema snapshot the agent prompts with.
type SchemaResponse struct {
	Dialect string                `json:"dialect"`
	Schema  *models.SchemaContext `json:"schema"`
	Prompt  string                `json:"prompt"`
}

// AgentHandler exposes the agent over HTTP.
type AgentHandler struct {
	agent     QueryAgent
	refresher SchemaRefresher
	logger    *zap.Logger
}

// NewAgentHandler creates a new AgentHandler. refresher may be nil, in which
// case POST /api/schema/refresh is not registered.
func NewAgentHandler(agent QueryAgent, refresher SchemaRefresher, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		agent:     agent,
		refresher: refresher,
		logger:    logger.Named("api"),
	}
}

// RegisterRoutes registers the agent API on the given mux.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("GET /api/memory", h.ListMemory)
	mux.HandleFunc("DELETE /api/memory", h.ClearMemory)
	mux.HandleFunc("GET /api/tools", h.ListTools)
	mux.HandleFunc("POST /api/tools/{name}", h.InvokeTool)
	mux.HandleFunc("GET /api/schema", h.GetSchema)
	if h.refresher != nil {
		mux.HandleFunc("POST /api/schema/refresh", h.RefreshSchema)
	}
}

// Query handles POST /api/query.
// Agent outcomes, including rejected and failed queries, are returned with
// 200 and a QueryResult body; only malformed requests are HTTP errors.
func (h *AgentHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := DecodeJSON(r, &req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	result := h.agent.QueryWithOptions(r.Context(), req.Question, services.QueryOptions{SkipSummary: req.SkipSummary})

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode query result", zap.Error(err))
	}
}

// ListMemory handles GET /api/memory.
func (h *AgentHandler) ListMemory(w http.ResponseWriter, r *http.Request) {
	mem := h.agent.Memory()
	response := MemoryResponse{
		Entries: mem.Entries(),
		Size:    mem.Size(),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode memory response", zap.Error(err))
	}
}

// ClearMemory handles DELETE /api/memory.
func (h *AgentHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	h.agent.Memory().Clear()
	h.logger.Info("Query memory cleared")
	w.WriteHeader(http.StatusNoContent)
}

// ListTools handles GET /api/tools.
func (h *AgentHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	list := h.agent.Tools()
	if list == nil {
		list = []tools.Info{}
	}
	if err := WriteJSON(w, http.StatusOK, ToolsResponse{Tools: list}); err != nil {
		h.logger.Error("Failed to encode tools response", zap.Error(err))
	}
}

// InvokeTool handles POST /api/tools/{name}. The body is the tool's argument object.
func (h *AgentHandler) InvokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	args := map[string]any{}
	if err := DecodeJSON(r, &args); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.agent.UseTool(r.Context(), name, args)
	if err != nil {
		status, code := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Tool invocation failed", zap.String("tool", name), logging.Err(err))
		}
		_ = ErrorResponse(w, status, code, logging.SanitizeError(err))
		return
	}

	if err := WriteJSON(w, http.StatusOK, res); err != nil {
		h.logger.Error("Failed to encode tool result", zap.Error(err))
	}
}

// GetSchema handles GET /api/schema.
func (h *AgentHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.agent.Schema(r.Context())
	if err != nil {
		h.logger.Error("Failed to load schema", logging.Err(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "schema_unavailable", logging.SanitizeError(err))
		return
	}
	h.writeSchema(w, schema)
}

// RefreshSchema handles POST /api/schema/refresh.
func (h *AgentHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.logger.Error("Failed to refresh schema", logging.Err(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "schema_unavailable", logging.SanitizeError(err))
		return
	}
	h.logger.Info("Schema refreshed", zap.Int("tables", len(schema.Tables)))
	h.writeSchema(w, schema)
}

func (h *AgentHandler) writeSchema(w http.ResponseWriter, schema *models.SchemaContext) {
	response := SchemaResponse{
		Dialect: h.agent.Dialect(),
		Schema:  schema,
		Prompt:  schema.Prompt(),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}

// errorStatus maps apperrors sentinels to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_arguments"
	case errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
