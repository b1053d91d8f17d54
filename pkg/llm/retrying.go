package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/retry"
)

// RetryingClient retries transient provider failures with backoff and stops
// calling a provider that keeps failing. Non-retryable errors (auth, unknown
// model) return immediately.
type RetryingClient struct {
	inner   LLMClient
	retry   *retry.Config
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewRetryingClient wraps inner. A nil retry config uses retry.DefaultConfig and a
// nil breaker disables circuit breaking.
func NewRetryingClient(inner LLMClient, retryCfg *retry.Config, breaker *CircuitBreaker, logger *zap.Logger) *RetryingClient {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RetryingClient{
		inner:   inner,
		breaker: breaker,
		logger:  logger.Named("llm"),
	}

	cfg := *retryCfg
	userOnRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		classified := ClassifyError(err)
		c.logger.Warn("LLM call failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("error_type", string(classified.Type)),
			zap.Duration("delay", delay),
			zap.Error(err))
		if userOnRetry != nil {
			userOnRetry(attempt, err, delay)
		}
	}
	c.retry = &cfg
	return c
}

// GenerateResponse implements LLMClient.
func (c *RetryingClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
	thinking bool,
) (*GenerateResponseResult, error) {
	return retry.DoIfRetryableWithResult(ctx, c.retry, func() (*GenerateResponseResult, error) {
		if c.breaker != nil {
			if ok, err := c.breaker.Allow(); !ok {
				return nil, NewErrorWithContext(ErrorTypeEndpoint, "provider unavailable", false, err, c.inner.GetModel(), c.inner.GetEndpoint(), 0)
			}
		}

		result, err := c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature, thinking)
		if err != nil {
			classified := ClassifyError(err)
			if c.breaker != nil && classified.Retryable {
				c.breaker.RecordFailure()
			}
			return nil, classified
		}
		if c.breaker != nil {
			c.breaker.RecordSuccess()
		}
		return result, nil
	})
}

// GetModel implements LLMClient.
func (c *RetryingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint implements LLMClient.
func (c *RetryingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}
