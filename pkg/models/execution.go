package models

import (
	"fmt"
	"time"
)

// FailureKind classifies an execution failure.
type FailureKind string

const (
	FailureSyntaxError      FailureKind = "SYNTAX_ERROR"
	FailureSchemaError      FailureKind = "SCHEMA_ERROR"
	FailureTimeout          FailureKind = "TIMEOUT"
	FailurePermissionDenied FailureKind = "PERMISSION_DENIED"
	// FailureDatabaseError covers connection loss and server-side faults that
	// say nothing about the statement itself.
	FailureDatabaseError FailureKind = "DATABASE_ERROR"
)

// Correctable reports whether asking the model for a revised statement can help.
func (k FailureKind) Correctable() bool {
	return k == FailureSyntaxError || k == FailureSchemaError
}

// ExecutionFailure is the typed failure half of an ExecutionResult.
type ExecutionFailure struct {
	Kind         FailureKind `json:"kind"`
	Message      string      `json:"message"`
	OffendingSQL string      `json:"offending_sql"`
}

// Error implements the error interface.
func (f *ExecutionFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ExecutionResult holds either a materialized result set or a failure.
type ExecutionResult struct {
	Columns  []string          `json:"columns,omitempty"`
	Rows     [][]any           `json:"rows,omitempty"`
	RowCount int               `json:"row_count"`
	Elapsed  time.Duration     `json:"elapsed"`
	Failure  *ExecutionFailure `json:"failure,omitempty"`
}

// OK reports whether the execution succeeded.
func (r *ExecutionResult) OK() bool {
	return r != nil && r.Failure == nil
}

// NewExecutionFailure builds a failed result.
func NewExecutionFailure(kind FailureKind, message, sql string, elapsed time.Duration) *ExecutionResult {
	return &ExecutionResult{
		Elapsed: elapsed,
		Failure: &ExecutionFailure{
			Kind:         kind,
			Message:      message,
			OffendingSQL: sql,
		},
	}
}
