package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serveMCP runs one request through MCPRequestLogger with a handler that
// replies with the given JSON-RPC body.
func serveMCP(t *testing.T, request, reply string) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	})

	rec := httptest.NewRecorder()
	MCPRequestLogger(zap.New(core))(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(request)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reply, rec.Body.String())
	return logs
}

const askCall = `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask","arguments":{"question":"How many employees?"}}}`

func TestMCPRequestLogger_Success(t *testing.T) {
	logs := serveMCP(t, askCall, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{\"row_count\":1}"}]}}`)

	require.Equal(t, 2, logs.Len())
	req := logs.All()[0]
	assert.Equal(t, "MCP request", req.Message)
	assert.Equal(t, "tools/call", req.ContextMap()["method"])
	assert.Equal(t, "ask", req.ContextMap()["tool"])
	assert.Equal(t, map[string]any{"question": "How many employees?"}, req.ContextMap()["arguments"])

	resp := logs.All()[1]
	assert.Equal(t, "MCP response success", resp.Message)
	assert.Contains(t, resp.ContextMap(), "duration")
}

func TestMCPRequestLogger_ProtocolError(t *testing.T) {
	logs := serveMCP(t, askCall, `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"circuit breaker open"}}`)

	require.Equal(t, 2, logs.Len())
	resp := logs.All()[1]
	assert.Equal(t, "MCP response error", resp.Message)
	assert.Equal(t, int64(-32603), resp.ContextMap()["error_code"])
	assert.Equal(t, "circuit breaker open", resp.ContextMap()["error_message"])
}

func TestMCPRequestLogger_ToolError(t *testing.T) {
	t.Run("structured payload", func(t *testing.T) {
		reply := `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"{\"error\":true,\"code\":\"security_violation\",\"message\":\"rejected\"}"}]}}`
		logs := serveMCP(t, askCall, reply)

		resp := logs.All()[1]
		assert.Equal(t, "MCP tool error", resp.Message)
		assert.Equal(t, "ask", resp.ContextMap()["tool"])
		assert.Equal(t, "security_violation", resp.ContextMap()["tool_error"])
	})

	t.Run("plain text", func(t *testing.T) {
		reply := `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"database unavailable"}]}}`
		logs := serveMCP(t, askCall, reply)

		assert.Equal(t, "database unavailable", logs.All()[1].ContextMap()["tool_error"])
	})
}

func TestMCPRequestLogger_UnparseableBodies(t *testing.T) {
	logs := serveMCP(t, "not json", "event: message\ndata: {}\n\n")

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{"Failed to parse MCP request JSON", "MCP request", "Failed to parse MCP response JSON"}, messages)
}

func TestMCPRequestLogger_NilLoggerPassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := MCPRequestLogger(nil)(handler)
	assert.NotNil(t, wrapped)
}

func TestSanitizeArguments(t *testing.T) {
	long := strings.Repeat("x", 250)
	args := map[string]any{
		"password":      "secret",
		"Api_Key":       "abc123",
		"AccessToken":   "xyz789",
		"client_secret": "hidden",
		"question":      "Which department has the highest payroll?",
		"notes":         long,
		"query":         "SELECT department,\n       COUNT(*)\n  FROM employees\n GROUP BY department",
		"limit":         float64(10),
		"columns":       []any{"name"},
	}

	got := sanitizeArguments(args)

	for _, k := range []string{"password", "Api_Key", "AccessToken", "client_secret"} {
		assert.Equal(t, "[REDACTED]", got[k], k)
	}
	assert.Equal(t, "Which department has the highest payroll?", got["question"])
	assert.Equal(t, long[:maxArgumentLogLength]+"...", got["notes"])
	assert.Equal(t, "SELECT department, COUNT(*) FROM employees GROUP BY department", got["query"])
	assert.Equal(t, float64(10), got["limit"])
	assert.Equal(t, []any{"name"}, got["columns"])

	assert.Nil(t, sanitizeArguments(nil))
	assert.Empty(t, sanitizeArguments(map[string]any{}))
}
