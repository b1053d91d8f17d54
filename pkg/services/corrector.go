package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/prompts"
)

// SQLCorrector asks the model to repair a candidate that failed to execute.
type SQLCorrector interface {
	// Correct returns the next candidate for failed. history holds earlier SQL
	// statements, oldest first. A model failure is returned as *CorrectionError.
	Correct(ctx context.Context, failed models.Candidate, failure *models.ExecutionFailure, schema *models.SchemaContext, history []string) (models.Candidate, error)
}

// CorrectionError reports that no corrected statement could be obtained.
type CorrectionError struct {
	Attempt int
	Cause   error
}

func (e *CorrectionError) Error() string {
	return fmt.Sprintf("correction unavailable after attempt %d: %v", e.Attempt, e.Cause)
}

func (e *CorrectionError) Unwrap() error {
	return e.Cause
}

type sqlCorrector struct {
	llmClient   llm.LLMClient
	dialect     string
	temperature float64
	logger      *zap.Logger
}

// NewSQLCorrector creates a corrector that writes statements for dialect.
func NewSQLCorrector(llmClient llm.LLMClient, dialect string, temperature float64, logger *zap.Logger) SQLCorrector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sqlCorrector{
		llmClient:   llmClient,
		dialect:     dialect,
		temperature: temperature,
		logger:      logger.Named("corrector"),
	}
}

var _ SQLCorrector = (*sqlCorrector)(nil)

func (c *sqlCorrector) Correct(ctx context.Context, failed models.Candidate, failure *models.ExecutionFailure, schema *models.SchemaContext, history []string) (models.Candidate, error) {
	in := prompts.CorrectionInput{
		Intent:      failed.Intent,
		Dialect:     c.dialect,
		FailedSQL:   failed.SQL,
		PreviousSQL: history,
	}
	if failure != nil {
		in.FailureKind = string(failure.Kind)
		in.FailureMessage = failure.Message
	}
	if schema != nil {
		in.SchemaPrompt = schema.Prompt()
	}

	start := time.Now()
	resp, err := c.llmClient.GenerateResponse(ctx, prompts.BuildCorrectionPrompt(in), prompts.CorrectionSystemMessage(), c.temperature, false)
	metrics.ObserveLLMCall("correction", time.Since(start), err)
	if err != nil {
		c.logger.Warn("Correction request failed",
			zap.Int("attempt", failed.Attempt),
			logging.Err(err))
		return models.Candidate{}, &CorrectionError{Attempt: failed.Attempt, Cause: err}
	}

	corrected := llm.ExtractSQL(resp.Content)
	c.logger.Debug("Received corrected query",
		zap.Int("attempt", failed.Attempt+1),
		logging.Query(corrected))

	return failed.Next(corrected), nil
}
