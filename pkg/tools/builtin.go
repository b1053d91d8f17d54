package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/prompts"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
)

const (
	ExplainQueryPlanName = "explain_query_plan"
	FixQueryName         = "fix_query"
	SummarizeResultsName = "summarize_results"
)

// Explainer returns a database execution plan.
type Explainer interface {
	Explain(ctx context.Context, sql string) (*datasource.ExplainResult, error)
}

// SchemaSource supplies the schema snapshot used in prompts.
type SchemaSource interface {
	Get(ctx context.Context) (*models.SchemaContext, error)
}

// Dependencies are the collaborators the built-in tools need.
type Dependencies struct {
	Explainer   Explainer
	Policy      *sqlpkg.Policy
	LLM         llm.LLMClient
	Schema      SchemaSource
	Dialect     string
	Temperature float64
}

// NewDefaultRegistry registers explain_query_plan, fix_query and summarize_results.
func NewDefaultRegistry(deps Dependencies, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, t := range []Tool{
		NewExplainQueryPlanTool(deps.Explainer, deps.Policy, deps.Schema),
		NewFixQueryTool(deps.LLM, deps.Schema, deps.Dialect, deps.Temperature),
		NewSummarizeResultsTool(deps.LLM, deps.Temperature),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// explain_query_plan

type explainQueryPlanTool struct {
	explainer Explainer
	policy    *sqlpkg.Policy
	schema    SchemaSource
}

// NewExplainQueryPlanTool creates the plan tool. Statements are validated
// against policy first because some databases execute the statement to plan it.
// When schema is set, the policy is scoped to its tables the way agent runs are.
func NewExplainQueryPlanTool(explainer Explainer, policy *sqlpkg.Policy, schema SchemaSource) Tool {
	if policy == nil {
		policy = sqlpkg.DefaultPolicy()
	}
	return &explainQueryPlanTool{explainer: explainer, policy: policy, schema: schema}
}

func (t *explainQueryPlanTool) Name() string { return ExplainQueryPlanName }

func (t *explainQueryPlanTool) Description() string {
	return "Explains the execution plan for a SQL query to help understand performance"
}

func (t *explainQueryPlanTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1, "description": "SQL query to explain"}
		},
		"required": ["query"],
		"additionalProperties": false
	}`)
}

func (t *explainQueryPlanTool) Invoke(ctx context.Context, args map[string]any) (*Result, error) {
	if t.explainer == nil {
		return nil, errors.New("no database is configured")
	}
	query, _ := args["query"].(string)

	policy := t.policy
	if t.schema != nil {
		schema, err := t.schema.Get(ctx)
		if err != nil {
			return &Result{
				Success: false,
				Output:  fmt.Sprintf("Schema unavailable, query not explained: %v", err),
			}, nil
		}
		policy = policy.ScopedTo(schema.TableNames())
	}

	verdict := sqlpkg.Validate(query, policy)
	if !verdict.Allowed {
		return &Result{
			Success: false,
			Output:  fmt.Sprintf("Query rejected [%s]: %s", verdict.Code, verdict.Reason),
			Data:    verdict,
		}, nil
	}

	plan, err := t.explainer.Explain(ctx, verdict.NormalizedSQL)
	if err != nil {
		return &Result{
			Success: false,
			Output:  fmt.Sprintf("Could not generate query plan: %v", err),
		}, nil
	}

	output := "Query Execution Plan:\n" + plan.Plan
	if len(plan.PerformanceHints) > 0 {
		output += "\n\nHints:\n- " + strings.Join(plan.PerformanceHints, "\n- ")
	}
	return &Result{Success: true, Output: output, Data: plan}, nil
}

// fix_query

type fixQueryTool struct {
	llm         llm.LLMClient
	schema      SchemaSource
	dialect     string
	temperature float64
}

// NewFixQueryTool creates the tool that asks the model to repair a statement.
func NewFixQueryTool(client llm.LLMClient, schema SchemaSource, dialect string, temperature float64) Tool {
	return &fixQueryTool{llm: client, schema: schema, dialect: dialect, temperature: temperature}
}

func (t *fixQueryTool) Name() string { return FixQueryName }

func (t *fixQueryTool) Description() string {
	return "Fixes SQL syntax errors in a query"
}

func (t *fixQueryTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1, "description": "SQL query to fix"},
			"error": {"type": "string", "description": "Error message from the database"},
			"question": {"type": "string", "description": "Question the query was meant to answer"}
		},
		"required": ["query", "error"],
		"additionalProperties": false
	}`)
}

func (t *fixQueryTool) Invoke(ctx context.Context, args map[string]any) (*Result, error) {
	if t.llm == nil {
		return nil, errors.New("no language model is configured")
	}
	query, _ := args["query"].(string)
	errMsg, _ := args["error"].(string)
	question, _ := args["question"].(string)

	in := prompts.CorrectionInput{
		Intent:         question,
		Dialect:        t.dialect,
		FailedSQL:      query,
		FailureMessage: errMsg,
	}
	if t.schema != nil {
		schema, err := t.schema.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		in.SchemaPrompt = schema.Prompt()
	}

	start := time.Now()
	resp, err := t.llm.GenerateResponse(ctx, prompts.BuildCorrectionPrompt(in), prompts.CorrectionSystemMessage(), t.temperature, false)
	metrics.ObserveLLMCall("fix_query", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	fixed := llm.ExtractSQL(resp.Content)
	return &Result{
		Success: true,
		Output:  fmt.Sprintf("Fixed Query:\n```sql\n%s\n```", fixed),
		Data:    fixed,
	}, nil
}

// summarize_results

type summarizeResultsTool struct {
	llm         llm.LLMClient
	temperature float64
}

// NewSummarizeResultsTool creates the tool that describes a result set in prose.
func NewSummarizeResultsTool(client llm.LLMClient, temperature float64) Tool {
	return &summarizeResultsTool{llm: client, temperature: temperature}
}

func (t *summarizeResultsTool) Name() string { return SummarizeResultsName }

func (t *summarizeResultsTool) Description() string {
	return "Summarizes query results using natural language"
}

func (t *summarizeResultsTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "SQL query that produced the rows"},
			"columns": {"type": "array", "items": {"type": "string"}},
			"rows": {"type": "array", "items": {"type": "array"}}
		},
		"required": ["query", "rows"],
		"additionalProperties": false
	}`)
}

func (t *summarizeResultsTool) Invoke(ctx context.Context, args map[string]any) (*Result, error) {
	if t.llm == nil {
		return nil, errors.New("no language model is configured")
	}
	query, _ := args["query"].(string)
	columns := toStrings(args["columns"])
	rows := toRows(args["rows"])

	start := time.Now()
	resp, err := t.llm.GenerateResponse(ctx, prompts.BuildSummaryPrompt(query, columns, rows), prompts.SummarySystemMessage(), t.temperature, false)
	metrics.ObserveLLMCall("summary", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	summary := strings.TrimSpace(llm.StripThinking(resp.Content))
	return &Result{Success: true, Output: summary, Data: summary}, nil
}

// toStrings accepts []string or a decoded JSON array.
func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// toRows accepts [][]any or a decoded JSON array of arrays.
func toRows(v any) [][]any {
	switch r := v.(type) {
	case [][]any:
		return r
	case []any:
		out := make([][]any, 0, len(r))
		for _, item := range r {
			if row, ok := item.([]any); ok {
				out = append(out, row)
			}
		}
		return out
	}
	return nil
}
