package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/testhelpers"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/tools"
)

// countingExecutor records how often the database was reached.
type countingExecutor struct {
	QueryExecutor
	calls atomic.Int32
	sqls  []string
	mu    sync.Mutex
}

func (c *countingExecutor) Execute(ctx context.Context, sql string) *models.ExecutionResult {
	c.calls.Add(1)
	c.mu.Lock()
	c.sqls = append(c.sqls, sql)
	c.mu.Unlock()
	return c.QueryExecutor.Execute(ctx, sql)
}

// groupByRunner rejects aggregates mixed with plain columns the way PostgreSQL
// does, which SQLite would otherwise accept.
type groupByRunner struct {
	datasource.QueryRunner
}

var aggregatePrefixes = []string{"COUNT(", "AVG(", "SUM(", "MIN(", "MAX("}

func (g groupByRunner) Run(ctx context.Context, sql string) (*datasource.QueryResult, error) {
	if column := ungroupedColumn(sql); column != "" {
		return nil, &pgconn.PgError{
			Code:    "42803",
			Message: fmt.Sprintf(`column "employees.%s" must appear in the GROUP BY clause or be used in an aggregate function`, column),
		}
	}
	return g.QueryRunner.Run(ctx, sql)
}

// ungroupedColumn returns the first plain column selected next to an aggregate
// in a statement without GROUP BY, or "".
func ungroupedColumn(sql string) string {
	upper := strings.ToUpper(sql)
	if strings.Contains(upper, "GROUP BY") || !strings.HasPrefix(upper, "SELECT ") {
		return ""
	}
	end := strings.Index(upper, " FROM ")
	if end < 0 {
		return ""
	}

	var hasAggregate bool
	var column string
	for _, item := range strings.Split(sql[len("SELECT "):end], ",") {
		item = strings.TrimSpace(item)
		switch {
		case hasAnyPrefix(strings.ToUpper(item), aggregatePrefixes):
			hasAggregate = true
		case column == "" && !strings.ContainsAny(item, "( "):
			column = strings.ToLower(item)
		}
	}
	if !hasAggregate {
		return ""
	}
	return column
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

type agentFixture struct {
	agent    *Agent
	llm      *llm.MockLLMClient
	executor *countingExecutor
	memory   *Memory
	logs     *observer.ObservedLogs
}

type fixtureOption func(*AgentConfig, *AgentDeps)

func withConfig(fn func(*AgentConfig)) fixtureOption {
	return func(cfg *AgentConfig, _ *AgentDeps) { fn(cfg) }
}

func newAgentFixture(t *testing.T, client *llm.MockLLMClient, opts ...fixtureOption) *agentFixture {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	db := testhelpers.NewSQLiteDB(t)
	policy := sqlpkg.NewPolicy(sqlpkg.PolicyConfig{
		SafeMode:               true,
		DefaultRowLimit:        100,
		DetectLiteralInjection: true,
		Dialect:                sqlpkg.DialectSQLite,
	})
	auditor := audit.NewSecurityAuditor(logger)
	runner := groupByRunner{QueryRunner: sqlite.NewQueryRunnerFromDB(db)}
	executor := &countingExecutor{QueryExecutor: NewExecutor(runner, policy, 5*time.Second, auditor, logger)}
	schema := NewSchemaContextProvider(sqlite.NewSchemaDiscovererFromDB(db, logger), DefaultSampleRows, logger)

	cfg := DefaultAgentConfig()
	cfg.EnableTools = false
	deps := AgentDeps{
		LLM:      client,
		Executor: executor,
		Schema:   schema,
		Memory:   NewMemory(10),
		Policy:   policy,
		Auditor:  auditor,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	agent, err := NewAgent(deps, cfg, logger)
	require.NoError(t, err)
	return &agentFixture{agent: agent, llm: client, executor: executor, memory: deps.Memory, logs: logs}
}

func withTools(t *testing.T) fixtureOption {
	return func(cfg *AgentConfig, deps *AgentDeps) {
		cfg.EnableTools = true
		registry, err := tools.NewDefaultRegistry(tools.Dependencies{
			Explainer: deps.Executor,
			Policy:    deps.Policy,
			LLM:       deps.LLM,
			Schema:    deps.Schema,
			Dialect:   deps.Executor.Dialect(),
		}, nil)
		require.NoError(t, err)
		deps.Tools = registry
	}
}

// A plain question is answered on the first attempt.
func TestAgent_Query_CountEngineering(t *testing.T) {
	client := llm.NewMockLLMClient("```sql\nSELECT COUNT(*) AS headcount FROM employees WHERE department = 'Engineering';\n```")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "How many employees are in the Engineering department?")

	require.True(t, result.Success, "unexpected failure: %s", result.Error)
	assert.Empty(t, result.Error)
	assert.Equal(t, models.ErrorKindNone, result.ErrorKind)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"headcount"}, result.Columns)
	require.Len(t, result.Data, 1)
	assert.EqualValues(t, testhelpers.EngineeringHeadcount, result.Data[0][0])
	assert.Equal(t, "SELECT COUNT(*) AS headcount FROM employees WHERE department = 'Engineering' LIMIT 100", result.SQLQuery)
	assert.Equal(t, 1, client.Calls())
	assert.Positive(t, result.Elapsed)

	prompt := client.LastPrompt()
	assert.Contains(t, prompt, "How many employees are in the Engineering department?")
	assert.Contains(t, prompt, "## Table: employees")
	assert.Contains(t, prompt, "SQLite")

	entries := f.memory.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, result.SQLQuery, entries[0].FinalSQL)
	assert.Equal(t, 1, entries[0].RowCount)
}

// A write statement is rejected, never reaches the database and leaves no SQL in memory.
func TestAgent_Query_BlockedKeywordNeverExecutes(t *testing.T) {
	client := llm.NewMockLLMClient("DELETE FROM employees WHERE department = 'Sales'")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Remove everyone in Sales")

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindPolicyViolation, result.ErrorKind)
	assert.Equal(t, models.ReasonBlockedKeyword, result.ReasonCode)
	assert.Contains(t, result.Error, "DELETE")
	assert.Nil(t, result.Data)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, int32(0), f.executor.calls.Load())
	assert.Equal(t, 1, client.Calls(), "policy violations are never corrected")

	assert.Equal(t, "DELETE FROM employees WHERE department = 'Sales'", result.SQLQuery)

	entries := f.memory.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeFailure, entries[0].Outcome)
	assert.Empty(t, entries[0].FinalSQL)
	assert.Empty(t, f.memory.RecentSQL(3))
	assert.NotContains(t, f.memory.PromptContext(), "DELETE FROM")

	assert.Equal(t, 1, f.logs.FilterMessage("Generated query rejected by policy").Len())

	// The rows are still there.
	check := f.agent.executor.Execute(context.Background(), "SELECT COUNT(*) FROM employees")
	require.True(t, check.OK())
	assert.EqualValues(t, 15, check.Rows[0][0])
}

// An average mixed with a plain column fails without GROUP BY and is fixed by
// one correction.
func TestAgent_Query_CorrectsAverageWithoutGroupBy(t *testing.T) {
	client := llm.NewMockLLMClient(
		"SELECT AVG(salary), department FROM employees",
		"SELECT department, AVG(salary) FROM employees GROUP BY department",
	)
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "What is the average salary per department?")

	require.True(t, result.Success, "unexpected failure: %s", result.Error)
	assert.Empty(t, result.Error)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "SELECT department, AVG(salary) FROM employees GROUP BY department LIMIT 100", result.SQLQuery)
	assert.Equal(t, 4, result.RowCount)
	require.Len(t, result.Columns, 2)
	assert.Equal(t, "department", result.Columns[0])

	departments := make([]any, 0, len(result.Data))
	for _, row := range result.Data {
		departments = append(departments, row[0])
	}
	assert.ElementsMatch(t, []any{"Engineering", "Sales", "Marketing", "Finance"}, departments)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "SELECT AVG(salary), department FROM employees", result.Candidates[0].SQL)
	assert.Equal(t, models.ProvenanceCorrected, result.Candidates[1].Provenance)

	correction := client.LastPrompt()
	assert.Contains(t, correction, "[SYNTAX_ERROR]")
	assert.Contains(t, correction, `column "employees.department" must appear in the GROUP BY clause`)

	entries := f.memory.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, result.SQLQuery, entries[0].FinalSQL)
	assert.Equal(t, int32(2), f.executor.calls.Load())
}

// A headcount per department needs GROUP BY; the correction carries the
// failed SQL, the error and the question.
func TestAgent_Query_CorrectsMissingGroupBy(t *testing.T) {
	client := llm.NewMockLLMClient(
		"SELECT department, COUNT(*) AS headcount FROM employees",
		"SELECT department, COUNT(*) AS headcount FROM employees GROUP BY department ORDER BY department",
	)
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Headcount per department")

	require.True(t, result.Success, "unexpected failure: %s", result.Error)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 4, result.RowCount)
	assert.Equal(t, []any{"Engineering", int64(8)}, result.Data[0])

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, models.ProvenanceGenerated, result.Candidates[0].Provenance)
	assert.Equal(t, 1, result.Candidates[0].Attempt)
	assert.Equal(t, models.ProvenanceCorrected, result.Candidates[1].Provenance)
	assert.Equal(t, 2, result.Candidates[1].Attempt)
	assert.Equal(t, "Headcount per department", result.Candidates[1].Intent)

	correction := client.LastPrompt()
	assert.Contains(t, correction, "```sql\nSELECT department, COUNT(*) AS headcount FROM employees\n```")
	assert.Contains(t, correction, "[SYNTAX_ERROR]")
	assert.Contains(t, correction, "must appear in the GROUP BY clause")
	assert.Contains(t, correction, "Headcount per department")

	assert.Equal(t, 1, f.memory.Len())
	assert.Equal(t, int32(2), f.executor.calls.Load())
}

// SQL the database cannot parse is corrected until the iteration budget runs out.
func TestAgent_Query_ExhaustsIterationsOnSyntaxErrors(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT name, FROM employees WHERE department = 'Sales'")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Who works in Sales?")

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindExhausted, result.ErrorKind)
	assert.Equal(t, models.FailureSyntaxError, result.FailureKind)
	assert.Contains(t, result.Error, "failed after 3 iterations")
	assert.Contains(t, result.Error, "syntax error")
	assert.Equal(t, 3, result.Iterations)
	require.Len(t, result.Candidates, 3)
	for i, c := range result.Candidates {
		assert.Equal(t, i+1, c.Attempt)
	}
	assert.Equal(t, 3, client.Calls(), "one generation and two corrections")
	assert.Equal(t, int32(3), f.executor.calls.Load())

	entries := f.memory.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeFailure, entries[0].Outcome)
	assert.Contains(t, entries[0].Error, "failed after 3 iterations")
}

// An unknown column is a schema error and is corrected the same way.
func TestAgent_Query_ExhaustsIterations(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT nickname FROM employees")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "List employee nicknames")

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindExhausted, result.ErrorKind)
	assert.Equal(t, models.FailureSchemaError, result.FailureKind)
	assert.Contains(t, result.Error, "failed after 3 iterations")
	assert.Contains(t, result.Error, "no such column")
	assert.Equal(t, 3, result.Iterations)
	assert.Len(t, result.Candidates, 3)
	assert.Equal(t, 3, client.Calls(), "one generation and two corrections")
	assert.Equal(t, int32(3), f.executor.calls.Load())
	assert.Equal(t, 1, f.memory.Len())
}

func TestAgent_Query_CorrectionDisabled(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT nickname FROM employees")
	f := newAgentFixture(t, client, withConfig(func(c *AgentConfig) { c.EnableCorrection = false }))

	result := f.agent.Query(context.Background(), "List employee nicknames")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindExecutionFailure, result.ErrorKind)
	assert.Equal(t, models.FailureSchemaError, result.FailureKind)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, client.Calls())
}

func TestAgent_Query_NonCorrectableFailure(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT name FROM employees")
	exec := &countingExecutor{QueryExecutor: &stubExecutor{
		result: models.NewExecutionFailure(models.FailureTimeout, "query exceeded 5s timeout", "SELECT name FROM employees", 0),
	}}
	f := newAgentFixture(t, client, func(_ *AgentConfig, d *AgentDeps) { d.Executor = exec })

	result := f.agent.Query(context.Background(), "Everyone's name")

	assert.Equal(t, models.ErrorKindExecutionFailure, result.ErrorKind)
	assert.Equal(t, models.FailureTimeout, result.FailureKind)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, client.Calls())
}

func TestAgent_Query_MaxIterationsOne(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT nickname FROM employees")
	f := newAgentFixture(t, client, withConfig(func(c *AgentConfig) { c.MaxIterations = 1 }))

	result := f.agent.Query(context.Background(), "List employee nicknames")

	assert.Equal(t, models.ErrorKindExhausted, result.ErrorKind)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, client.Calls())
}

func TestAgent_Query_CorrectionUnavailable(t *testing.T) {
	client := llm.NewMockLLMClient()
	var calls atomic.Int32
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, thinking bool) (*llm.GenerateResponseResult, error) {
		if calls.Add(1) == 1 {
			return &llm.GenerateResponseResult{Content: "SELECT nickname FROM employees"}, nil
		}
		return nil, &llm.Error{Type: llm.ErrorTypeEndpoint, Message: "connection refused"}
	}
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "List employee nicknames")

	assert.Equal(t, models.ErrorKindCorrectionUnavailable, result.ErrorKind)
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, f.memory.Len())
}

func TestAgent_Query_GenerationUnavailable(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, thinking bool) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("model offline")
	}
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "How many projects are active?")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindGenerationUnavailable, result.ErrorKind)
	assert.Contains(t, result.Error, "model offline")
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, int32(0), f.executor.calls.Load())

	entries := f.memory.Entries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].FinalSQL)
	assert.Equal(t, models.OutcomeFailure, entries[0].Outcome)
}

func TestAgent_Query_EmptyQuestion(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT 1")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "   ")

	assert.Equal(t, models.ErrorKindGenerationUnavailable, result.ErrorKind)
	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, 1, f.memory.Len())
}

func TestAgent_Query_EmptyCompletionIsPolicyViolation(t *testing.T) {
	client := llm.NewMockLLMClient("")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Anything")

	assert.Equal(t, models.ErrorKindPolicyViolation, result.ErrorKind)
	assert.Equal(t, models.ReasonEmptyQuery, result.ReasonCode)
	assert.Equal(t, int32(0), f.executor.calls.Load())
}

func TestAgent_Query_UnknownTableFromSchema(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT * FROM employee")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Show all employees")

	assert.Equal(t, models.ErrorKindPolicyViolation, result.ErrorKind)
	assert.Equal(t, models.ReasonUnknownTable, result.ReasonCode)
	assert.Contains(t, result.Error, `did you mean "employees"`)
	assert.Equal(t, int32(0), f.executor.calls.Load())
}

func TestAgent_Query_SuspiciousLiteralIsAudited(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT * FROM employees WHERE name = ''' OR 1=1--'")
	f := newAgentFixture(t, client)

	result := f.agent.Query(context.Background(), "Find the employee named ' OR 1=1--")

	assert.Equal(t, models.ErrorKindPolicyViolation, result.ErrorKind)
	assert.Equal(t, models.ReasonSuspiciousLiteral, result.ReasonCode)
	assert.Equal(t, 1, f.logs.FilterMessage("SQL injection pattern in generated query").Len())
	assert.Equal(t, int32(0), f.executor.calls.Load())
}

func TestAgent_Query_RecoversFromPanics(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT name FROM employees")
	exec := &stubExecutor{panicWith: "driver exploded"}
	f := newAgentFixture(t, client, func(_ *AgentConfig, d *AgentDeps) { d.Executor = exec })

	var result *models.QueryResult
	require.NotPanics(t, func() {
		result = f.agent.Query(context.Background(), "Everyone's name")
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindExecutionFailure, result.ErrorKind)
	assert.Equal(t, models.FailureDatabaseError, result.FailureKind)
	assert.Contains(t, result.Error, "driver exploded")
	assert.Equal(t, 1, f.memory.Len())
	assert.Equal(t, 1, f.logs.FilterMessage("Recovered from panic during run").Len())
}

func TestAgent_Query_MemoryFeedsNextPromptAndEvicts(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT name FROM departments ORDER BY id")
	f := newAgentFixture(t, client, func(_ *AgentConfig, d *AgentDeps) { d.Memory = NewMemory(2) })
	ctx := context.Background()

	f.agent.Query(ctx, "first question")
	assert.NotContains(t, client.LastPrompt(), "## Recent Query History")

	f.agent.Query(ctx, "second question")
	assert.Contains(t, client.LastPrompt(), "## Recent Query History")
	assert.Contains(t, client.LastPrompt(), "first question")

	f.agent.Query(ctx, "third question")

	entries := f.memory.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second question", entries[0].NaturalLanguageQuery)
	assert.Equal(t, "third question", entries[1].NaturalLanguageQuery)
}

func TestAgent_Query_SummarizesWithTools(t *testing.T) {
	client := llm.NewMockLLMClient(
		"SELECT name, budget FROM departments ORDER BY budget DESC",
		"Engineering has the largest budget.",
	)
	f := newAgentFixture(t, client, withTools(t))

	result := f.agent.Query(context.Background(), "Department budgets")

	require.True(t, result.Success, "unexpected failure: %s", result.Error)
	assert.Equal(t, "Engineering has the largest budget.", result.Summary)
	assert.Equal(t, 2, client.Calls())
	assert.Contains(t, client.Prompts[0], "## Available Tools")
	assert.Contains(t, client.Prompts[0], "summarize_results")
	assert.Contains(t, client.LastPrompt(), "Summarize the following SQL query results")
}

func TestAgent_QueryWithOptions_SkipSummary(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT name FROM departments")
	f := newAgentFixture(t, client, withTools(t))

	result := f.agent.QueryWithOptions(context.Background(), "Department names", QueryOptions{SkipSummary: true})

	require.True(t, result.Success)
	assert.Empty(t, result.Summary)
	assert.Equal(t, 1, client.Calls())
}

func TestAgent_Query_SummaryFailureKeepsResult(t *testing.T) {
	client := llm.NewMockLLMClient()
	var calls atomic.Int32
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, thinking bool) (*llm.GenerateResponseResult, error) {
		if calls.Add(1) == 1 {
			return &llm.GenerateResponseResult{Content: "SELECT name FROM departments"}, nil
		}
		return nil, errors.New("rate limited")
	}
	f := newAgentFixture(t, client, withTools(t))

	result := f.agent.Query(context.Background(), "Department names")

	require.True(t, result.Success)
	assert.Empty(t, result.Summary)
	assert.Equal(t, 4, result.RowCount)
}

func TestAgent_UseTool(t *testing.T) {
	client := llm.NewMockLLMClient()
	f := newAgentFixture(t, client, withTools(t))

	res, err := f.agent.UseTool(context.Background(), tools.ExplainQueryPlanName, map[string]any{"query": "SELECT * FROM employees WHERE id = 3"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "Query Execution Plan")

	_, err = f.agent.UseTool(context.Background(), "drop_everything", nil)
	assert.ErrorIs(t, err, tools.ErrToolNotFound)

	assert.Len(t, f.agent.Tools(), 3)
}

func TestAgent_UseTool_WithoutRegistry(t *testing.T) {
	f := newAgentFixture(t, llm.NewMockLLMClient())

	_, err := f.agent.UseTool(context.Background(), tools.FixQueryName, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Nil(t, f.agent.Tools())
}

func TestAgent_Query_ConcurrentCallersAreSerialized(t *testing.T) {
	client := llm.NewMockLLMClient("SELECT COUNT(*) FROM projects")
	f := newAgentFixture(t, client)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.agent.Query(context.Background(), "How many projects?")
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	assert.Equal(t, callers, f.memory.Len())
	assert.Equal(t, callers, client.Calls())
}

func TestNewAgent_RequiresCollaborators(t *testing.T) {
	_, err := NewAgent(AgentDeps{}, DefaultAgentConfig(), nil)
	assert.Error(t, err)

	_, err = NewAgent(AgentDeps{LLM: llm.NewMockLLMClient()}, DefaultAgentConfig(), nil)
	assert.Error(t, err)

	_, err = NewAgent(AgentDeps{LLM: llm.NewMockLLMClient(), Executor: &stubExecutor{}}, DefaultAgentConfig(), nil)
	assert.Error(t, err)

	a, err := NewAgent(AgentDeps{
		LLM:      llm.NewMockLLMClient(),
		Executor: &stubExecutor{},
		Schema:   StaticSchema{},
	}, AgentConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, a.Config().MaxIterations)
	assert.Equal(t, DefaultMemorySize, a.Memory().Size())
}

// stubExecutor returns a fixed result or panics.
type stubExecutor struct {
	result    *models.ExecutionResult
	panicWith any
}

func (s *stubExecutor) Execute(ctx context.Context, sql string) *models.ExecutionResult {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.result == nil {
		return &models.ExecutionResult{Rows: [][]any{}}
	}
	return s.result
}

func (s *stubExecutor) Explain(ctx context.Context, sql string) (*datasource.ExplainResult, error) {
	return &datasource.ExplainResult{Plan: "stub"}, nil
}

func (s *stubExecutor) Dialect() string { return "sqlite" }
