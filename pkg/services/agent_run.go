package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

type runState string

const (
	stateGenerating  runState = "GENERATING"
	stateValidating  runState = "VALIDATING"
	stateExecuting   runState = "EXECUTING"
	stateCorrecting  runState = "CORRECTING"
	stateSummarizing runState = "SUMMARIZING"
	stateTerminal    runState = "TERMINAL"
)

// agentRun is the working state of one Query call.
type agentRun struct {
	id         uuid.UUID
	question   string
	opts       QueryOptions
	start      time.Time
	state      runState
	candidates []models.Candidate

	// validatedSQL is the normalized form of the newest candidate, empty until
	// that candidate passes validation.
	validatedSQL string
}

func newAgentRun(question string, opts QueryOptions) *agentRun {
	return &agentRun{
		id:       uuid.New(),
		question: question,
		opts:     opts,
		start:    time.Now(),
	}
}

func (r *agentRun) lastSQL() string {
	if len(r.candidates) == 0 {
		return ""
	}
	return r.candidates[len(r.candidates)-1].SQL
}

func (r *agentRun) base() *models.QueryResult {
	r.state = stateTerminal
	return &models.QueryResult{
		UserQuery:  r.question,
		SQLQuery:   r.lastSQL(),
		Iterations: len(r.candidates),
		Candidates: append([]models.Candidate(nil), r.candidates...),
	}
}

func (r *agentRun) succeed(normalizedSQL string, exec *models.ExecutionResult) *models.QueryResult {
	res := r.base()
	res.Success = true
	res.SQLQuery = normalizedSQL
	res.Columns = exec.Columns
	res.Data = exec.Rows
	if res.Data == nil {
		res.Data = [][]any{}
	}
	res.RowCount = exec.RowCount
	return res
}

func (r *agentRun) fail(kind models.ErrorKind, msg string) *models.QueryResult {
	res := r.base()
	res.ErrorKind = kind
	res.Error = msg
	return res
}

func (r *agentRun) rejected(v models.Verdict) *models.QueryResult {
	res := r.fail(models.ErrorKindPolicyViolation, fmt.Sprintf("query rejected by policy: %s", v.Reason))
	res.ReasonCode = v.Code
	return res
}

func (r *agentRun) executionFailed(f *models.ExecutionFailure) *models.QueryResult {
	res := r.fail(models.ErrorKindExecutionFailure, f.Message)
	res.FailureKind = f.Kind
	return res
}

func (r *agentRun) exhausted(f *models.ExecutionFailure, maxIterations int) *models.QueryResult {
	res := r.fail(models.ErrorKindExhausted,
		fmt.Sprintf("failed after %d iterations, last error: %s", maxIterations, f.Message))
	res.FailureKind = f.Kind
	return res
}

// panicked reports a recovered panic as the failure of whatever the run was doing.
func (r *agentRun) panicked(p any) *models.QueryResult {
	msg := fmt.Sprintf("internal error: %v", p)
	switch r.state {
	case stateExecuting:
		res := r.fail(models.ErrorKindExecutionFailure, msg)
		res.FailureKind = models.FailureDatabaseError
		return res
	case stateCorrecting:
		return r.fail(models.ErrorKindCorrectionUnavailable, msg)
	case stateValidating:
		res := r.fail(models.ErrorKindPolicyViolation, msg)
		res.ReasonCode = models.ReasonMalformedQuery
		return res
	default:
		return r.fail(models.ErrorKindGenerationUnavailable, msg)
	}
}
