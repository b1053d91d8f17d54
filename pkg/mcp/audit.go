package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
)

// Security levels attached to audited tool calls.
const (
	SecurityNormal   = "normal"
	SecurityWarning  = "warning"
	SecurityCritical = "critical"
)

// Event types attached to audited tool calls.
const (
	EventToolCall               = "tool_call"
	EventToolError              = "tool_error"
	EventSQLInjectionAttempt    = "sql_injection_attempt"
	EventPolicyViolationOutcome = "policy_violation"
)

// ToolEvent is one audited MCP tool call.
type ToolEvent struct {
	EventType     string
	ToolName      string
	RequestParams map[string]any
	WasSuccessful bool
	ErrorMessage  string
	ResultSummary map[string]any
	Duration      time.Duration
	SecurityLevel string
	SecurityFlags []string
	ClientIP      string
}

// AuditLogger writes one structured log entry per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime, _ := a.loadAndDeleteStart(id)

	event := a.buildEvent(ctx, req)
	event.EventType = EventToolCall
	event.WasSuccessful = result == nil || !result.IsError
	event.Duration = time.Since(startTime)
	event.ResultSummary = summarizeResult(result)

	classifyToolCallSecurity(event, result)
	a.record(event)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime, _ := a.loadAndDeleteStart(id)

	event := a.buildEvent(ctx, req)
	event.EventType = EventToolError
	event.WasSuccessful = false
	event.Duration = time.Since(startTime)
	event.ErrorMessage = err.Error()

	classifyErrorSecurity(event, event.ErrorMessage)
	a.record(event)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

func (a *AuditLogger) buildEvent(ctx context.Context, req *mcplib.CallToolRequest) *ToolEvent {
	return &ToolEvent{
		ToolName:      req.Params.Name,
		RequestParams: sanitizeParams(req.Params.Arguments),
		SecurityLevel: SecurityNormal,
		ClientIP:      audit.ClientIPFromContext(ctx),
	}
}

func (a *AuditLogger) record(event *ToolEvent) {
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("tool", event.ToolName),
		zap.Bool("success", event.WasSuccessful),
		zap.Duration("duration", event.Duration),
		zap.String("security_level", event.SecurityLevel),
	}
	if len(event.RequestParams) > 0 {
		fields = append(fields, zap.Any("params", event.RequestParams))
	}
	if len(event.ResultSummary) > 0 {
		fields = append(fields, zap.Any("result", event.ResultSummary))
	}
	if len(event.SecurityFlags) > 0 {
		fields = append(fields, zap.Strings("security_flags", event.SecurityFlags))
	}
	if event.ErrorMessage != "" {
		fields = append(fields, zap.String("error", event.ErrorMessage))
	}
	if event.ClientIP != "" {
		fields = append(fields, zap.String("client_ip", event.ClientIP))
	}

	switch event.SecurityLevel {
	case SecurityCritical:
		a.logger.Error("MCP tool call", fields...)
	case SecurityWarning:
		a.logger.Warn("MCP tool call", fields...)
	default:
		a.logger.Info("MCP tool call", fields...)
	}
}

const (
	// maxParamSize caps any single string parameter kept in an audit entry.
	maxParamSize = 10240
	// maxPreviewSize caps the result text preview.
	maxPreviewSize = 200
)

var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|credential|private[_-]?key)`)

// sanitizeParams copies tool arguments for the audit log. Credential-like keys
// are hashed, SQL arguments lose their string literal values and long strings
// are truncated. Nested objects are sanitized the same way.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case string:
			if sensitiveKeyPattern.MatchString(k) {
				out[k] = hashSensitiveValue(val)
			} else {
				out[k] = sanitizeString(k, val)
			}
		case map[string]any:
			out[k] = sanitizeParams(val)
		default:
			if sensitiveKeyPattern.MatchString(k) {
				out[k] = hashSensitiveValue(fmt.Sprint(val))
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func sanitizeString(key, val string) string {
	if isSQLParam(key) {
		val = sqlpkg.RedactLiterals(val)
	}
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	return val
}

// isSQLParam reports whether an argument name carries a statement.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// hashSensitiveValue keeps a short SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(sum[:8])
}

// summarizeResult keeps the error flag, a preview of the first text block and,
// for ask results, the row count.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{"is_error": result.IsError}
	text, ok := firstText(result)
	if !ok {
		return summary
	}
	summary["content_count"] = len(result.Content)
	if n, ok := extractRowCount(text); ok {
		summary["row_count"] = n
	}
	if len(text) > maxPreviewSize {
		text = text[:maxPreviewSize] + "...[truncated]"
	}
	summary["preview"] = text
	return summary
}

func firstText(result *mcplib.CallToolResult) (string, bool) {
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text, true
		}
	}
	return "", false
}

func extractRowCount(text string) (int, bool) {
	var partial struct {
		RowCount *int `json:"row_count"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil || partial.RowCount == nil {
		return 0, false
	}
	return *partial.RowCount, true
}

// classifyToolCallSecurity grades a failed tool result by the code in its
// ErrorResponse payload.
func classifyToolCallSecurity(event *ToolEvent, result *mcplib.CallToolResult) {
	if result == nil || !result.IsError {
		return
	}
	text, ok := firstText(result)
	if !ok {
		return
	}

	var resp ErrorResponse
	code := ""
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		code = resp.Code
	}

	switch code {
	case codeSecurityViolation:
		flagInjection(event)
	case codePolicyViolation:
		event.EventType = EventPolicyViolationOutcome
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "policy_violation")
	}
}

// classifyErrorSecurity grades a tool call that failed with a Go error.
func classifyErrorSecurity(event *ToolEvent, errMsg string) {
	lower := strings.ToLower(errMsg)
	switch {
	case strings.Contains(lower, "injection"):
		flagInjection(event)
	case strings.Contains(lower, "safe mode") || strings.Contains(lower, "permission denied"):
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "blocked_statement")
	}
}

func flagInjection(event *ToolEvent) {
	event.EventType = EventSQLInjectionAttempt
	event.SecurityLevel = SecurityCritical
	event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
}
