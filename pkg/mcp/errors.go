package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// Error codes with audit significance.
const (
	codeSecurityViolation = "security_violation"
	codePolicyViolation   = "policy_violation"
)

// ErrorResponse represents a structured error in tool results.
// Actionable failures (rejected SQL, bad arguments) are returned as tool
// results so the calling model can see and react to them.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
//
// Do NOT use this for system failures (lost connections, internal errors).
// Those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}
