package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

func TestSQLCorrector_Correct(t *testing.T) {
	client := llm.NewMockLLMClient("Here is the fix:\n```sql\nSELECT department, COUNT(*) FROM employees GROUP BY department;\n```")
	corrector := NewSQLCorrector(client, "postgres", 0.2, nil)

	failed := models.NewGeneratedCandidate("SELECT department, COUNT(*) FROM employees", "Headcount per department")
	failure := &models.ExecutionFailure{
		Kind:    models.FailureSyntaxError,
		Message: `column "employees.department" must appear in the GROUP BY clause`,
	}
	schema := &models.SchemaContext{Tables: []models.SchemaTable{{TableName: "employees"}}}

	next, err := corrector.Correct(context.Background(), failed, failure, schema,
		[]string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4"})

	require.NoError(t, err)
	assert.Equal(t, "SELECT department, COUNT(*) FROM employees GROUP BY department", next.SQL)
	assert.Equal(t, models.ProvenanceCorrected, next.Provenance)
	assert.Equal(t, 2, next.Attempt)
	assert.Equal(t, "Headcount per department", next.Intent)

	prompt := client.LastPrompt()
	assert.Contains(t, prompt, "[SYNTAX_ERROR]")
	assert.Contains(t, prompt, "must appear in the GROUP BY clause")
	assert.Contains(t, prompt, "## Table: employees")
	assert.Contains(t, prompt, "Provide the corrected PostgreSQL query")
	assert.NotContains(t, prompt, "- SELECT 1\n")
	assert.Contains(t, prompt, "- SELECT 4\n")

	// The failed candidate is untouched.
	assert.Equal(t, 1, failed.Attempt)
	assert.Equal(t, models.ProvenanceGenerated, failed.Provenance)
}

func TestSQLCorrector_ModelFailure(t *testing.T) {
	client := llm.NewMockLLMClient()
	cause := errors.New("503 service unavailable")
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, thinking bool) (*llm.GenerateResponseResult, error) {
		return nil, cause
	}
	corrector := NewSQLCorrector(client, "sqlite", 0, nil)

	_, err := corrector.Correct(context.Background(), models.NewGeneratedCandidate("SELECT x", "q"),
		&models.ExecutionFailure{Kind: models.FailureSchemaError, Message: "no such column: x"}, nil, nil)

	var corrErr *CorrectionError
	require.True(t, errors.As(err, &corrErr))
	assert.Equal(t, 1, corrErr.Attempt)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, client.Calls(), "no internal retry")
}

func TestSQLCorrector_EmptyCompletion(t *testing.T) {
	corrector := NewSQLCorrector(llm.NewMockLLMClient("   "), "sqlite", 0, nil)

	next, err := corrector.Correct(context.Background(), models.NewGeneratedCandidate("SELECT x", "q"),
		&models.ExecutionFailure{Kind: models.FailureSchemaError, Message: "no such column: x"}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "", next.SQL)
	assert.Equal(t, 2, next.Attempt)
}
