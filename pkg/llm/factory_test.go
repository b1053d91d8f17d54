package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderClient(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantType     any
		wantEndpoint string
		wantErr      string
	}{
		{
			name:         "openai default endpoint",
			cfg:          Config{Provider: "OpenAI", Model: "gpt-4o", APIKey: "sk"},
			wantType:     &Client{},
			wantEndpoint: DefaultOpenAIEndpoint,
		},
		{
			name:    "openai requires key",
			cfg:     Config{Provider: "openai", Model: "gpt-4o"},
			wantErr: `api key is required for provider "openai"`,
		},
		{
			name:         "local needs no key",
			cfg:          Config{Provider: "local", Model: "llama3"},
			wantType:     &Client{},
			wantEndpoint: DefaultLocalEndpoint,
		},
		{
			name:         "anthropic",
			cfg:          Config{Provider: "anthropic", Model: "claude", APIKey: "k"},
			wantType:     &AnthropicClient{},
			wantEndpoint: "https://api.anthropic.com/v1",
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "cohere", Model: "x"},
			wantErr: `unsupported llm provider "cohere"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewProviderClient(&tt.cfg, zap.NewNop())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
			assert.Equal(t, tt.wantEndpoint, client.GetEndpoint())
		})
	}
}

func TestNewClientFromConfig_WrapsWithRetries(t *testing.T) {
	client, err := NewClientFromConfig(&Config{Provider: "local", Model: "llama3"}, nil, DefaultCircuitBreakerConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.IsType(t, &RetryingClient{}, client)
	assert.Equal(t, "llama3", client.GetModel())
}
