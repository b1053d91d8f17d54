package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "SELECT COUNT(*) FROM employees"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func newChatServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&Config{Model: "gpt-4o"}, zap.NewNop())
	assert.EqualError(t, err, "endpoint is required")

	_, err = NewClient(&Config{Endpoint: "http://x"}, zap.NewNop())
	assert.EqualError(t, err, "model is required")
}

func TestClient_GenerateResponse(t *testing.T) {
	var req map[string]any
	srv := newChatServer(t, http.StatusOK, chatCompletionBody, &req)

	client, err := NewClient(&Config{Provider: ProviderOpenAI, Endpoint: srv.URL + "/", Model: "gpt-4o", APIKey: "sk-test", MaxTokens: 256}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "How many employees?", "You write SQL.", 0.1, false)
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM employees", result.Content)
	assert.Equal(t, 42, result.PromptTokens)
	assert.Equal(t, 7, result.CompletionTokens)
	assert.Equal(t, 49, result.TotalTokens)

	assert.Equal(t, "gpt-4o", req["model"])
	assert.EqualValues(t, 256, req["max_tokens"])
	assert.NotContains(t, req, "chat_template_kwargs")

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "How many employees?", messages[1].(map[string]any)["content"])
}

func TestClient_LocalProviderSendsThinkingFlag(t *testing.T) {
	var req map[string]any
	srv := newChatServer(t, http.StatusOK, chatCompletionBody, &req)

	client, err := NewClient(&Config{Provider: ProviderLocal, Endpoint: srv.URL, Model: "qwen3"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0, true)
	require.NoError(t, err)

	kwargs, ok := req["chat_template_kwargs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, kwargs["enable_thinking"])
}

func TestClient_GenerateResponse_ClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantType      ErrorType
		wantRetryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorTypeAuth, false},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimited, true},
		{"server error", http.StatusServiceUnavailable, ErrorTypeEndpoint, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, tt.status, `{"error": {"message": "nope", "type": "server_error"}}`, nil)
			client, err := NewClient(&Config{Endpoint: srv.URL, Model: "gpt-4o", APIKey: "sk"}, zap.NewNop())
			require.NoError(t, err)

			_, err = client.GenerateResponse(context.Background(), "q", "s", 0, false)
			require.Error(t, err)

			var llmErr *Error
			require.True(t, errors.As(err, &llmErr))
			assert.Equal(t, tt.wantType, llmErr.Type)
			assert.Equal(t, tt.wantRetryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.StatusCode)
			assert.Equal(t, "gpt-4o", llmErr.Model)
		})
	}
}

func TestClient_NoChoices(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"id": "x", "choices": [], "usage": {}}`, nil)
	client, err := NewClient(&Config{Endpoint: srv.URL, Model: "gpt-4o"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClient_Accessors(t *testing.T) {
	client, err := NewClient(&Config{Endpoint: "http://localhost:8000/v1", Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", client.GetModel())
	assert.Equal(t, "http://localhost:8000/v1", client.GetEndpoint())
}
