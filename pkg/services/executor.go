package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
)

// DefaultExecutionTimeout bounds one statement when the config leaves it unset.
const DefaultExecutionTimeout = 30 * time.Second

// QueryExecutor runs validated statements. Execute never returns a nil result:
// database problems come back as a failed ExecutionResult, not an error.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) *models.ExecutionResult
	Explain(ctx context.Context, sql string) (*datasource.ExplainResult, error)
	Dialect() string
}

// Executor runs statements against one datasource with a per-call timeout.
// It trusts the validator and never rewrites SQL; in safe mode it still refuses
// statements carrying a blocked keyword.
type Executor struct {
	runner  datasource.QueryRunner
	policy  *sqlpkg.Policy
	timeout time.Duration
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

var _ QueryExecutor = (*Executor)(nil)

// NewExecutor creates an executor. A zero timeout uses DefaultExecutionTimeout.
func NewExecutor(runner datasource.QueryRunner, policy *sqlpkg.Policy, timeout time.Duration, auditor *audit.SecurityAuditor, logger *zap.Logger) *Executor {
	if policy == nil {
		policy = sqlpkg.DefaultPolicy()
	}
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditor == nil {
		auditor = audit.NewSecurityAuditor(logger)
	}
	return &Executor{
		runner:  runner,
		policy:  policy,
		timeout: timeout,
		auditor: auditor,
		logger:  logger.Named("executor"),
	}
}

// Execute runs sql in one round trip and materializes every row.
func (e *Executor) Execute(ctx context.Context, sql string) *models.ExecutionResult {
	result := e.execute(ctx, sql)
	metrics.ObserveExecution(result)
	return result
}

func (e *Executor) execute(ctx context.Context, sql string) *models.ExecutionResult {
	start := time.Now()

	if e.policy.SafeMode() {
		if kw := sqlpkg.FindBlockedKeyword(sql, e.policy); kw != "" {
			e.auditor.LogSafeModeBlock(ctx, kw, sql)
			return models.NewExecutionFailure(models.FailurePermissionDenied,
				fmt.Sprintf("safe mode blocks keyword %s", kw), sql, time.Since(start))
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	qr, err := e.runner.Run(execCtx, sql)
	elapsed := time.Since(start)
	if err != nil {
		kind := classifyExecutionError(err)
		msg := executionErrorMessage(err)
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			kind = models.FailureTimeout
			msg = fmt.Sprintf("query exceeded %s timeout", e.timeout)
		}

		e.logger.Warn("Query execution failed",
			logging.Query(sql),
			zap.String("failure_kind", string(kind)),
			zap.Duration("elapsed", elapsed),
			logging.Err(err))
		return models.NewExecutionFailure(kind, msg, sql, elapsed)
	}

	rows := qr.Rows
	if rows == nil {
		rows = [][]any{}
	}

	e.logger.Debug("Query executed",
		logging.Query(sql),
		zap.Int("row_count", len(rows)),
		zap.Duration("elapsed", elapsed))

	return &models.ExecutionResult{
		Columns:  qr.ColumnNames(),
		Rows:     rows,
		RowCount: len(rows),
		Elapsed:  elapsed,
	}
}

// Explain returns the datasource's plan for sql under the same timeout.
func (e *Executor) Explain(ctx context.Context, sql string) (*datasource.ExplainResult, error) {
	if e.policy.SafeMode() {
		if kw := sqlpkg.FindBlockedKeyword(sql, e.policy); kw != "" {
			e.auditor.LogSafeModeBlock(ctx, kw, sql)
			return nil, fmt.Errorf("safe mode blocks keyword %s", kw)
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	plan, err := e.runner.Explain(execCtx, sql)
	if err != nil {
		return nil, fmt.Errorf("explain: %s", executionErrorMessage(err))
	}
	return plan, nil
}

// Dialect returns the datasource dialect, e.g. "postgres".
func (e *Executor) Dialect() string {
	return e.runner.Dialect()
}
