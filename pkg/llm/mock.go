package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set GenerateResponseFunc for full control, or queue canned completions with
// Responses; each call pops one and the last one repeats.
type MockLLMClient struct {
	mu sync.Mutex

	// GenerateResponseFunc is called when GenerateResponse is invoked.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error)

	// Responses are returned in order when GenerateResponseFunc is nil.
	Responses []string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	GenerateResponseCalls int
	Prompts               []string
	SystemMessages        []string
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	return &MockLLMClient{
		Model:     "mock-model",
		Endpoint:  "http://mock-endpoint",
		Responses: responses,
	}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	m.mu.Lock()
	m.GenerateResponseCalls++
	m.Prompts = append(m.Prompts, prompt)
	m.SystemMessages = append(m.SystemMessages, systemMessage)
	fn := m.GenerateResponseFunc
	var content string
	if fn == nil && len(m.Responses) > 0 {
		content = m.Responses[0]
		if len(m.Responses) > 1 {
			m.Responses = m.Responses[1:]
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, systemMessage, temperature, thinking)
	}
	return &GenerateResponseResult{Content: content}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Calls returns the number of GenerateResponse calls so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateResponseCalls
}

// LastPrompt returns the most recent prompt, or "" before the first call.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

// Reset clears call tracking counters.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseCalls = 0
	m.Prompts = nil
	m.SystemMessages = nil
}

// Ensure MockLLMClient implements LLMClient at compile time.
var _ LLMClient = (*MockLLMClient)(nil)
