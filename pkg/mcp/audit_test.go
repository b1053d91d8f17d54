package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
)

func TestClassifyToolCallSecurity(t *testing.T) {
	tests := []struct {
		name      string
		result    *mcplib.CallToolResult
		wantType  string
		wantLevel string
		wantFlags []string
	}{
		{
			name:      "nil result",
			wantType:  EventToolCall,
			wantLevel: SecurityNormal,
		},
		{
			name:      "success",
			result:    mcplib.NewToolResultText(`{"row_count":3}`),
			wantType:  EventToolCall,
			wantLevel: SecurityNormal,
		},
		{
			name:      "literal injection",
			result:    NewErrorResult(codeSecurityViolation, "suspicious string literal"),
			wantType:  EventSQLInjectionAttempt,
			wantLevel: SecurityCritical,
			wantFlags: []string{"sql_injection_attempt"},
		},
		{
			name:      "blocked keyword",
			result:    NewErrorResult(codePolicyViolation, "blocked keyword DELETE"),
			wantType:  EventPolicyViolationOutcome,
			wantLevel: SecurityWarning,
			wantFlags: []string{"policy_violation"},
		},
		{
			name:      "execution failure",
			result:    NewErrorResult("execution_failure", "no such column: salry"),
			wantType:  EventToolCall,
			wantLevel: SecurityNormal,
		},
		{
			name: "unstructured error text",
			result: &mcplib.CallToolResult{
				IsError: true,
				Content: []mcplib.Content{mcplib.TextContent{Type: "text", Text: "policy_violation mentioned in prose"}},
			},
			wantType:  EventToolCall,
			wantLevel: SecurityNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &ToolEvent{EventType: EventToolCall, SecurityLevel: SecurityNormal}
			classifyToolCallSecurity(event, tt.result)

			assert.Equal(t, tt.wantType, event.EventType)
			assert.Equal(t, tt.wantLevel, event.SecurityLevel)
			assert.Equal(t, tt.wantFlags, event.SecurityFlags)
		})
	}
}

func TestClassifyErrorSecurity(t *testing.T) {
	tests := []struct {
		msg       string
		wantLevel string
		wantFlags []string
	}{
		{"possible SQL injection in literal", SecurityCritical, []string{"sql_injection_attempt"}},
		{"statement blocked by safe mode", SecurityWarning, []string{"blocked_statement"}},
		{"ERROR: permission denied for table salaries", SecurityWarning, []string{"blocked_statement"}},
		{"connection reset by peer", SecurityNormal, nil},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			event := &ToolEvent{EventType: EventToolError, SecurityLevel: SecurityNormal}
			classifyErrorSecurity(event, tt.msg)

			assert.Equal(t, tt.wantLevel, event.SecurityLevel)
			assert.Equal(t, tt.wantFlags, event.SecurityFlags)
		})
	}
}

func TestSanitizeParams(t *testing.T) {
	assert.Nil(t, sanitizeParams(nil))
	assert.Nil(t, sanitizeParams("not a map"))
	assert.Nil(t, sanitizeParams(map[string]any{}))

	got := sanitizeParams(map[string]any{
		"question": "Who earns more than 'Alice'?",
		"query":    "SELECT * FROM employees WHERE name = 'O''Brien' AND salary > 100000",
		"plan_sql": "SELECT 'x'",
		"api_key":  "sk-abcdefghijklmnop",
		"pin":      1234,
		"limit":    float64(50),
		"filters": map[string]any{
			"password": "hunter2",
			"query":    "SELECT 1 WHERE 'a' = 'a'",
		},
	})

	assert.Equal(t, "Who earns more than 'Alice'?", got["question"], "non-SQL strings keep their quotes")
	assert.Equal(t, "SELECT * FROM employees WHERE name = '***' AND salary > 100000", got["query"])
	assert.Equal(t, "SELECT '***'", got["plan_sql"])
	assert.Equal(t, float64(50), got["limit"])
	assert.Equal(t, 1234, got["pin"])

	key, ok := got["api_key"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(key, "sha256:"))
	assert.Len(t, key, len("sha256:")+16)
	assert.Equal(t, key, hashSensitiveValue("sk-abcdefghijklmnop"), "hash is deterministic")

	nested, ok := got["filters"].(map[string]any)
	require.True(t, ok)
	assert.NotEqual(t, "hunter2", nested["password"])
	assert.Equal(t, "SELECT 1 WHERE '***' = '***'", nested["query"])
}

func TestSanitizeParams_TruncatesLargeValues(t *testing.T) {
	long := "SELECT " + strings.Repeat("x", maxParamSize)
	got := sanitizeParams(map[string]any{"query": long})

	query := got["query"].(string)
	assert.Len(t, query, maxParamSize+len("...[truncated]"))
	assert.True(t, strings.HasSuffix(query, "...[truncated]"))
}

func TestIsSQLParam(t *testing.T) {
	for key, want := range map[string]bool{
		"sql": true, "SQL": true, "query": true, "fixed_sql": true, "original_query": true,
		"question": false, "sql_dialect": false, "error": false,
	} {
		assert.Equal(t, want, isSQLParam(key), key)
	}
}

func TestSummarizeResult(t *testing.T) {
	assert.Nil(t, summarizeResult(nil))

	ok := summarizeResult(mcplib.NewToolResultText(`{"sql":"SELECT 1","row_count":42}`))
	assert.Equal(t, false, ok["is_error"])
	assert.Equal(t, 42, ok["row_count"])
	assert.Equal(t, 1, ok["content_count"])

	long := summarizeResult(mcplib.NewToolResultText(strings.Repeat("y", 500)))
	assert.NotContains(t, long, "row_count")
	assert.Equal(t, strings.Repeat("y", maxPreviewSize)+"...[truncated]", long["preview"])

	empty := summarizeResult(&mcplib.CallToolResult{IsError: true})
	assert.Equal(t, map[string]any{"is_error": true}, empty)
}

func TestAuditLogger_LevelsAndClientIP(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	auditor := NewAuditLogger(zap.New(core))
	ctx := audit.WithClientIP(context.Background(), "10.1.2.3")

	req := &mcplib.CallToolRequest{}
	req.Params.Name = AskToolName
	req.Params.Arguments = map[string]any{"question": "drop everything"}

	auditor.beforeCallTool(ctx, 1, req)
	auditor.afterCallTool(ctx, 1, req, NewErrorResult(codePolicyViolation, "blocked keyword DROP"))
	auditor.onError(ctx, 2, mcplib.MethodToolsCall, req, errors.New("possible injection"))
	auditor.onError(ctx, 3, mcplib.MethodToolsList, nil, errors.New("ignored"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, EventPolicyViolationOutcome, entries[0].ContextMap()["event_type"])
	assert.Equal(t, "10.1.2.3", entries[0].ContextMap()["client_ip"])
	assert.Equal(t, false, entries[0].ContextMap()["success"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, EventSQLInjectionAttempt, entries[1].ContextMap()["event_type"])
	assert.Equal(t, "possible injection", entries[1].ContextMap()["error"])
}
