package models

import "time"

// ErrorKind is the top-level failure category reported to callers.
type ErrorKind string

const (
	ErrorKindNone                  ErrorKind = ""
	ErrorKindPolicyViolation       ErrorKind = "POLICY_VIOLATION"
	ErrorKindExecutionFailure      ErrorKind = "EXECUTION_FAILURE"
	ErrorKindCorrectionUnavailable ErrorKind = "CORRECTION_UNAVAILABLE"
	ErrorKindExhausted             ErrorKind = "EXHAUSTED"
	ErrorKindGenerationUnavailable ErrorKind = "GENERATION_UNAVAILABLE"
)

// QueryResult is what Agent.Query returns to every caller.
// Error is set only when Success is false, and Data only when Success is true.
type QueryResult struct {
	Success     bool          `json:"success"`
	UserQuery   string        `json:"user_query"`
	SQLQuery    string        `json:"sql_query,omitempty"`
	Columns     []string      `json:"columns,omitempty"`
	Data        [][]any       `json:"data,omitempty"`
	RowCount    int           `json:"row_count"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	ReasonCode  ReasonCode    `json:"reason_code,omitempty"`
	Iterations  int           `json:"iterations"`
	Elapsed     time.Duration `json:"elapsed"`
	Summary     string        `json:"summary,omitempty"`
	Candidates  []Candidate   `json:"candidates,omitempty"`
}
