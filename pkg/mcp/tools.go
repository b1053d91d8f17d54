package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/tools"
)

// AskToolName is the MCP tool that runs a natural-language question through the agent.
const AskToolName = "ask"

// Agent is the part of services.Agent the MCP surface needs.
// Defined here to keep the mcp package free of the services import graph.
type Agent interface {
	Query(ctx context.Context, question string) *models.QueryResult
	Tools() []tools.Info
	UseTool(ctx context.Context, name string, args map[string]any) (*tools.Result, error)
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
func RegisterHealthTool(s *server.MCPServer, version string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := json.Marshal(healthResult{Status: "ok", Version: version})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}

// RegisterAgentTools exposes the ask tool and every tool in the agent's registry.
func RegisterAgentTools(s *server.MCPServer, agent Agent) {
	ask := mcp.NewTool(
		AskToolName,
		mcp.WithDescription("Answer a question about the connected database. The question is translated "+
			"to a read-only SQL query, validated, executed and corrected if it fails."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question, e.g. \"How many employees are in Engineering?\""),
		),
	)
	s.AddTool(ask, askHandler(agent))

	for _, info := range agent.Tools() {
		tool := mcp.NewToolWithRawSchema(info.Name, info.Description, info.InputSchema)
		s.AddTool(tool, registryHandler(agent, info.Name))
	}
}

func askHandler(agent Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		if strings.TrimSpace(question) == "" {
			return NewErrorResult("invalid_parameters", "question must not be empty"), nil
		}

		result := agent.Query(ctx, question)
		if !result.Success {
			return NewErrorResultWithDetails(errorCode(result), result.Error, failureDetails(result)), nil
		}

		body, err := json.Marshal(askResponse{
			SQL:        result.SQLQuery,
			Columns:    result.Columns,
			Rows:       result.Data,
			RowCount:   result.RowCount,
			Iterations: result.Iterations,
			Summary:    result.Summary,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal query result: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

type askResponse struct {
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	Iterations int      `json:"iterations"`
	Summary    string   `json:"summary,omitempty"`
}

// errorCode maps a failed result to a snake_case error code. Policy
// rejections for literal injection become security_violation.
func errorCode(result *models.QueryResult) string {
	if result.ReasonCode == models.ReasonSuspiciousLiteral {
		return codeSecurityViolation
	}
	if result.ErrorKind == models.ErrorKindNone {
		return "query_failed"
	}
	return strings.ToLower(string(result.ErrorKind))
}

func failureDetails(result *models.QueryResult) map[string]any {
	details := map[string]any{
		"iterations": result.Iterations,
	}
	if result.SQLQuery != "" {
		details["sql"] = result.SQLQuery
	}
	if result.FailureKind != "" {
		details["failure_kind"] = result.FailureKind
	}
	if result.ReasonCode != "" {
		details["reason_code"] = result.ReasonCode
	}
	return details
}

func registryHandler(agent Agent, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := agent.UseTool(ctx, name, req.GetArguments())
		if err != nil {
			var argErr *tools.ArgumentsError
			switch {
			case errors.Is(err, tools.ErrToolNotFound):
				return NewErrorResult("tool_not_found", err.Error()), nil
			case errors.As(err, &argErr):
				return NewErrorResult("invalid_parameters", err.Error()), nil
			}
			return nil, err
		}
		if !res.Success {
			return NewErrorResult("tool_failed", res.Output), nil
		}
		return mcp.NewToolResultText(res.Output), nil
	}
}
