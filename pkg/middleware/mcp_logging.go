package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
)

const maxArgumentLogLength = 200

var sensitiveKeywords = []string{"password", "secret", "token", "key", "credential"}

// MCPRequestLogger logs each JSON-RPC exchange on the MCP endpoint at debug
// level. Tool failures reported inside a result (isError) are logged apart from
// protocol errors. A nil logger disables the middleware.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req rpcRequest
			if err := json.Unmarshal(body, &req); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}
			tool := zap.String("tool", req.Params.Name)

			logger.Debug("MCP request",
				zap.String("method", req.Method),
				tool,
				zap.Any("arguments", sanitizeArguments(req.Params.Arguments)),
			)

			rec := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			duration := zap.Duration("duration", time.Since(start))

			var resp rpcResponse
			if err := json.Unmarshal(rec.body.Bytes(), &resp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			switch {
			case resp.Error != nil:
				logger.Debug("MCP response error",
					tool,
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", resp.Error.Message),
					duration,
				)
			case resp.Result.IsError:
				logger.Debug("MCP tool error",
					tool,
					zap.String("tool_error", resp.Result.errorCode()),
					duration,
				)
			default:
				logger.Debug("MCP response success", tool, duration)
			}
		})
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	Result rpcResult `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rpcResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// errorCode pulls the code out of a structured tool error payload, or falls
// back to the truncated text of the first content block.
func (r rpcResult) errorCode() string {
	if len(r.Content) == 0 {
		return ""
	}
	text := r.Content[0].Text
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Code != "" {
		return payload.Code
	}
	return logging.TruncateString(text, maxArgumentLogLength)
}

// mcpResponseRecorder tees the response body so it can be inspected after the
// handler returns.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// sanitizeArguments redacts credential-like keys, flattens SQL arguments onto
// one line and truncates other strings.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			out[k] = logging.RedactedText
			continue
		}
		str, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		switch strings.ToLower(k) {
		case "query", "sql":
			out[k] = logging.SanitizeQuery(str)
		default:
			out[k] = logging.TruncateString(str, maxArgumentLogLength)
		}
	}
	return out
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
