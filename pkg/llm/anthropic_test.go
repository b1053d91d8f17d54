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

func TestNewAnthropicClient_Validation(t *testing.T) {
	_, err := NewAnthropicClient(&Config{Model: "claude"}, zap.NewNop())
	assert.EqualError(t, err, "api key is required")

	_, err = NewAnthropicClient(&Config{APIKey: "k"}, zap.NewNop())
	assert.EqualError(t, err, "model is required")

	c, err := NewAnthropicClient(&Config{APIKey: "k", Model: "claude"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1", c.GetEndpoint())
	assert.Equal(t, DefaultAnthropicMaxTokens, c.maxTokens)
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "SELECT name "}, {"type": "text", "text": "FROM employees"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(&Config{Endpoint: srv.URL, Model: "claude-test", APIKey: "test-key", MaxTokens: 512}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "List employees", "You write SQL.", 0.2, false)
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM employees", result.Content)
	assert.Equal(t, 30, result.PromptTokens)
	assert.Equal(t, 5, result.CompletionTokens)
	assert.Equal(t, 35, result.TotalTokens)

	assert.Equal(t, "claude-test", req["model"])
	assert.Equal(t, "You write SQL.", req["system"])
	assert.EqualValues(t, 512, req["max_tokens"])
}

func TestAnthropicClient_ErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(&Config{Endpoint: srv.URL, Model: "claude-test", APIKey: "bad"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0, false)
	require.Error(t, err)

	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, "claude-test", llmErr.Model)
}
