package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/retry"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
)

// Default endpoints used when the config leaves Endpoint empty.
const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultLocalEndpoint  = "http://localhost:11434/v1"
)

// NewProviderClient creates the bare client for cfg.Provider without retries.
func NewProviderClient(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	resolved := *cfg
	resolved.Provider = provider

	switch provider {
	case ProviderOpenAI, "":
		resolved.Provider = ProviderOpenAI
		if resolved.Endpoint == "" {
			resolved.Endpoint = DefaultOpenAIEndpoint
		}
		if resolved.APIKey == "" {
			return nil, fmt.Errorf("api key is required for provider %q", ProviderOpenAI)
		}
		return NewClient(&resolved, logger)
	case ProviderLocal:
		if resolved.Endpoint == "" {
			resolved.Endpoint = DefaultLocalEndpoint
		}
		return NewClient(&resolved, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(&resolved, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q (want %s, %s or %s)",
			cfg.Provider, ProviderOpenAI, ProviderAnthropic, ProviderLocal)
	}
}

// NewClientFromConfig creates the provider client wrapped with retries and a
// circuit breaker, which is what the agent should be given.
func NewClientFromConfig(cfg *Config, retryCfg *retry.Config, breakerCfg CircuitBreakerConfig, logger *zap.Logger) (LLMClient, error) {
	client, err := NewProviderClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return NewRetryingClient(client, retryCfg, NewCircuitBreaker(breakerCfg), logger), nil
}
