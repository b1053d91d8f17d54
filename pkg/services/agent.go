package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/prompts"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/tools"
)

// DefaultMaxIterations bounds the candidates tried for one question.
const DefaultMaxIterations = 3

// AgentConfig holds the plain values that shape a run.
type AgentConfig struct {
	MaxIterations    int
	EnableCorrection bool
	EnableTools      bool
	Temperature      float64
	Thinking         bool
	MemorySize       int
}

// DefaultAgentConfig returns the configuration used when nothing is set.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations:    DefaultMaxIterations,
		EnableCorrection: true,
		EnableTools:      true,
		Temperature:      0.1,
		MemorySize:       DefaultMemorySize,
	}
}

// ToolRegistry is the part of tools.Registry the agent uses.
type ToolRegistry interface {
	List() []tools.Info
	Invoke(ctx context.Context, name string, args map[string]any) (*tools.Result, error)
}

// AgentDeps are the agent's collaborators. LLM, Executor and Schema are required.
// A nil Corrector, Memory, Policy or Auditor gets a default; a nil Tools
// disables tool use.
type AgentDeps struct {
	LLM       llm.LLMClient
	Executor  QueryExecutor
	Schema    SchemaSource
	Corrector SQLCorrector
	Memory    *Memory
	Policy    *sqlpkg.Policy
	Tools     ToolRegistry
	Auditor   *audit.SecurityAuditor
}

// QueryOptions adjust a single run.
type QueryOptions struct {
	// SkipSummary suppresses the result summary even when tools are enabled.
	SkipSummary bool
}

// Agent answers natural-language questions with SQL. One question runs at a
// time; concurrent callers wait their turn.
type Agent struct {
	llm       llm.LLMClient
	executor  QueryExecutor
	schema    SchemaSource
	corrector SQLCorrector
	memory    *Memory
	policy    *sqlpkg.Policy
	tools     ToolRegistry
	auditor   *audit.SecurityAuditor
	cfg       AgentConfig
	logger    *zap.Logger

	mu sync.Mutex
}

// NewAgent wires an agent. cfg.MaxIterations < 1 uses DefaultMaxIterations.
func NewAgent(deps AgentDeps, cfg AgentConfig, logger *zap.Logger) (*Agent, error) {
	if deps.LLM == nil {
		return nil, errors.New("agent requires an LLM client")
	}
	if deps.Executor == nil {
		return nil, errors.New("agent requires an executor")
	}
	if deps.Schema == nil {
		return nil, errors.New("agent requires a schema source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	a := &Agent{
		llm:       deps.LLM,
		executor:  deps.Executor,
		schema:    deps.Schema,
		corrector: deps.Corrector,
		memory:    deps.Memory,
		policy:    deps.Policy,
		tools:     deps.Tools,
		auditor:   deps.Auditor,
		cfg:       cfg,
		logger:    logger.Named("agent"),
	}
	if a.corrector == nil {
		a.corrector = NewSQLCorrector(deps.LLM, deps.Executor.Dialect(), cfg.Temperature, logger)
	}
	if a.memory == nil {
		a.memory = NewMemory(cfg.MemorySize)
	}
	if a.policy == nil {
		a.policy = sqlpkg.DefaultPolicy()
	}
	if a.auditor == nil {
		a.auditor = audit.NewSecurityAuditor(logger)
	}
	return a, nil
}

// Memory returns the agent's run history.
func (a *Agent) Memory() *Memory { return a.memory }

// Config returns the agent configuration.
func (a *Agent) Config() AgentConfig { return a.cfg }

// Dialect returns the SQL dialect of the agent's database.
func (a *Agent) Dialect() string { return a.executor.Dialect() }

// Schema returns the schema snapshot the agent prompts with.
func (a *Agent) Schema(ctx context.Context) (*models.SchemaContext, error) {
	return a.schema.Get(ctx)
}

// Tools lists the registered tools, or nil when tool use is unavailable.
func (a *Agent) Tools() []tools.Info {
	if a.tools == nil {
		return nil
	}
	return a.tools.List()
}

// UseTool invokes a registered tool directly.
func (a *Agent) UseTool(ctx context.Context, name string, args map[string]any) (*tools.Result, error) {
	if a.tools == nil {
		return nil, fmt.Errorf("no tool registry available: %w", apperrors.ErrUnavailable)
	}
	return a.tools.Invoke(ctx, name, args)
}

// Query answers question. It always returns a result and records exactly one
// memory entry, whatever happens inside the run.
func (a *Agent) Query(ctx context.Context, question string) *models.QueryResult {
	return a.QueryWithOptions(ctx, question, QueryOptions{})
}

// QueryWithOptions is Query with per-run options.
func (a *Agent) QueryWithOptions(ctx context.Context, question string, opts QueryOptions) *models.QueryResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	run := newAgentRun(question, opts)
	a.logger.Info("Processing question",
		zap.String("run_id", run.id.String()),
		zap.String("question", logging.SanitizePrompt(question)))

	result := a.safeRun(ctx, run)
	result.Elapsed = time.Since(run.start)

	a.remember(run, result)
	metrics.ObserveQuery(result)

	if result.Success {
		a.logger.Info("Question answered",
			zap.String("run_id", run.id.String()),
			zap.Int("iterations", result.Iterations),
			zap.Int("row_count", result.RowCount),
			zap.Duration("elapsed", result.Elapsed))
	} else {
		a.logger.Warn("Question failed",
			zap.String("run_id", run.id.String()),
			zap.String("error_kind", string(result.ErrorKind)),
			zap.Int("iterations", result.Iterations),
			zap.String("error", logging.SanitizeQuery(result.Error)))
	}
	return result
}

// safeRun converts a panic in any collaborator into a failed result for the
// state the run was in.
func (a *Agent) safeRun(ctx context.Context, run *agentRun) (result *models.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered from panic during run",
				zap.String("run_id", run.id.String()),
				zap.String("state", string(run.state)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result = run.panicked(r)
		}
	}()
	return a.loop(ctx, run)
}

func (a *Agent) loop(ctx context.Context, run *agentRun) *models.QueryResult {
	run.state = stateGenerating
	if strings.TrimSpace(run.question) == "" {
		return run.fail(models.ErrorKindGenerationUnavailable, "question is empty")
	}

	schema, err := a.schema.Get(ctx)
	if err != nil {
		return run.fail(models.ErrorKindGenerationUnavailable, fmt.Sprintf("schema unavailable: %v", err))
	}
	policy := a.policy.ScopedTo(schema.TableNames())

	candidate, err := a.generate(ctx, run, schema)
	if err != nil {
		return run.fail(models.ErrorKindGenerationUnavailable, fmt.Sprintf("SQL generation failed: %v", err))
	}

	for {
		run.candidates = append(run.candidates, candidate)
		run.validatedSQL = ""

		run.state = stateValidating
		verdict := sqlpkg.Validate(candidate.SQL, policy)
		if !verdict.Allowed {
			a.auditRejection(ctx, run, candidate, verdict)
			return run.rejected(verdict)
		}
		run.validatedSQL = verdict.NormalizedSQL

		run.state = stateExecuting
		exec := a.executor.Execute(ctx, verdict.NormalizedSQL)
		if exec.OK() {
			a.auditor.LogQueryExecution(ctx, run.id, verdict.NormalizedSQL, exec.RowCount)
			result := run.succeed(verdict.NormalizedSQL, exec)
			a.summarize(ctx, run, result)
			return result
		}

		failure := exec.Failure
		a.logger.Info("Candidate failed",
			zap.String("run_id", run.id.String()),
			zap.Int("attempt", candidate.Attempt),
			zap.String("failure_kind", string(failure.Kind)),
			zap.String("message", failure.Message))

		switch {
		case !failure.Kind.Correctable(), !a.cfg.EnableCorrection:
			return run.executionFailed(failure)
		case len(run.candidates) >= a.cfg.MaxIterations:
			return run.exhausted(failure, a.cfg.MaxIterations)
		}

		run.state = stateCorrecting
		next, err := a.corrector.Correct(ctx, candidate, failure, schema, a.memory.RecentSQL(prompts.MaxPreviousQueries))
		if err != nil {
			return run.fail(models.ErrorKindCorrectionUnavailable, err.Error())
		}
		candidate = next
	}
}

func (a *Agent) generate(ctx context.Context, run *agentRun, schema *models.SchemaContext) (models.Candidate, error) {
	dialect := a.executor.Dialect()
	in := prompts.GenerationInput{
		Question:      run.question,
		Dialect:       dialect,
		SchemaPrompt:  schema.Prompt(),
		MemoryContext: a.memory.PromptContext(),
	}
	if a.cfg.EnableTools {
		for _, t := range a.Tools() {
			in.Tools = append(in.Tools, prompts.ToolSummary{Name: t.Name, Description: t.Description})
		}
	}

	start := time.Now()
	resp, err := a.llm.GenerateResponse(ctx, prompts.BuildGenerationPrompt(in), prompts.GenerationSystemMessage(dialect), a.cfg.Temperature, a.cfg.Thinking)
	metrics.ObserveLLMCall("generation", time.Since(start), err)
	if err != nil {
		return models.Candidate{}, err
	}

	sql := llm.ExtractSQL(resp.Content)
	a.logger.Debug("Generated query",
		zap.String("run_id", run.id.String()),
		logging.Query(sql),
		zap.Int("completion_tokens", resp.CompletionTokens))
	return models.NewGeneratedCandidate(sql, run.question), nil
}

func (a *Agent) auditRejection(ctx context.Context, run *agentRun, candidate models.Candidate, verdict models.Verdict) {
	if verdict.Code == models.ReasonSuspiciousLiteral {
		for _, hit := range sqlpkg.CheckStatementLiterals(candidate.SQL, a.policy.Dialect()) {
			a.auditor.LogInjectionAttempt(ctx, run.id, audit.SQLInjectionDetails{
				Literal:     hit.Literal,
				Fingerprint: hit.Fingerprint,
				SQL:         candidate.SQL,
			})
		}
	}
	a.auditor.LogPolicyViolation(ctx, run.id, audit.PolicyViolationDetails{
		Question: run.question,
		Code:     verdict.Code,
		Reason:   verdict.Reason,
		SQL:      candidate.SQL,
	})
}

// summarize attaches a prose summary of a non-empty result. Failures are
// logged and leave the result without a summary.
func (a *Agent) summarize(ctx context.Context, run *agentRun, result *models.QueryResult) {
	if !a.cfg.EnableTools || a.tools == nil || run.opts.SkipSummary || result.RowCount == 0 {
		return
	}
	run.state = stateSummarizing
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered from panic in result summary",
				zap.String("run_id", run.id.String()),
				zap.Any("panic", r))
		}
	}()

	res, err := a.tools.Invoke(ctx, tools.SummarizeResultsName, map[string]any{
		"query":   result.SQLQuery,
		"columns": result.Columns,
		"rows":    result.Data,
	})
	if err != nil {
		a.logger.Warn("Result summary failed", zap.String("run_id", run.id.String()), logging.Err(err))
		return
	}
	if res.Success {
		result.Summary = res.Output
	}
}

// remember records the run. Only SQL that passed validation is kept, so a
// rejected statement never reaches later prompts.
func (a *Agent) remember(run *agentRun, result *models.QueryResult) {
	entry := models.MemoryEntry{
		NaturalLanguageQuery: result.UserQuery,
		FinalSQL:             run.validatedSQL,
		RowCount:             result.RowCount,
	}
	if result.Success {
		entry.Outcome = models.OutcomeSuccess
	} else {
		entry.Outcome = models.OutcomeFailure
		entry.Error = result.Error
	}
	a.memory.Add(entry)
}
